package service

import (
	"context"

	"github.com/Sachaa-Thanasius/patreon-discord-linked-role-auth/internal/domain"
)

// StaticSource returns fixed example values for every user. Real attribute
// collection (e.g. pledge lookups) plugs in behind MetadataSource.
type StaticSource struct{}

var _ MetadataSource = StaticSource{}

// Collect returns the example cookie attributes.
func (StaticSource) Collect(context.Context, string) (domain.Metadata, error) {
	return domain.Metadata{
		"cookieseaten":   1483,
		"allergictonuts": 0,
		"bakingsince":    "2003-12-20",
	}, nil
}

// DefaultSchema is the field set registered against the application. The
// keys line up with what StaticSource pushes.
func DefaultSchema() []domain.SchemaField {
	return []domain.SchemaField{
		{
			Key:         "cookieseaten",
			Name:        "Cookies Eaten",
			Description: "Cookies Eaten Greater Than",
			Type:        domain.AttributeNumberGreaterThan,
		},
		{
			Key:         "allergictonuts",
			Name:        "Allergic To Nuts",
			Description: "Is Allergic To Nuts",
			Type:        domain.AttributeBoolEqual,
		},
		{
			Key:         "bakingsince",
			Name:        "Baking Since",
			Description: "Days since baking their first cookie",
			Type:        domain.AttributeDatetimeGreaterThan,
		},
	}
}
