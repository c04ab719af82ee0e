package main

import "risk-review-system/internal/bootstrap/scoring"

func main() {
	scoring.StartScoringWorker()
}
