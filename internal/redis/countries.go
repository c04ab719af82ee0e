package redis

import (
	"context"
	"sort"
	"strings"
)

const highRiskCountriesKey = "high_risk_countries"

// HighRiskCountries список высокорисковых юрисдикций, общий для всех сервисов
func (c *Client) HighRiskCountries(ctx context.Context) ([]string, error) {
	countries, err := c.rdb.SMembers(ctx, highRiskCountriesKey).Result()
	if err != nil {
		return nil, err
	}
	sort.Strings(countries)
	return countries, nil
}

// IsHighRiskCountry проверяет, является ли страна высокорисковой
func (c *Client) IsHighRiskCountry(ctx context.Context, countryCode string) (bool, error) {
	return c.rdb.SIsMember(ctx, highRiskCountriesKey, strings.ToUpper(countryCode)).Result()
}

// AddHighRiskCountries добавляет страны в список
func (c *Client) AddHighRiskCountries(ctx context.Context, countries ...string) error {
	if len(countries) == 0 {
		return nil
	}
	members := make([]interface{}, 0, len(countries))
	for _, country := range countries {
		members = append(members, strings.ToUpper(country))
	}
	return c.rdb.SAdd(ctx, highRiskCountriesKey, members...).Err()
}
