package main

import "risk-review-system/internal/bootstrap/review"

// @title Risk Review API
// @version 1.0
// @description Оценка риска операций учетной книги, политика авто-одобрения и очередь ручной проверки
// @host localhost:8080
// @BasePath /api/v1
func main() {
	review.StartReviewService()
}
