package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEffectiveAllocation(t *testing.T) {
	at := time.Date(2026, 10, 15, 6, 0, 0, 0, time.UTC)

	_, ok := EffectiveAllocation(nil)
	assert.False(t, ok)

	rows := []DailyAllocation{
		{ID: "a1", CreatedAt: at},
		{ID: "a3", CreatedAt: at.Add(2 * time.Hour)},
		{ID: "a2", CreatedAt: at.Add(time.Hour)},
	}
	effective, ok := EffectiveAllocation(rows)
	assert.True(t, ok)
	assert.Equal(t, "a3", effective.ID)

	tied := []DailyAllocation{{ID: "first", CreatedAt: at}, {ID: "second", CreatedAt: at}}
	effective, _ = EffectiveAllocation(tied)
	assert.Equal(t, "second", effective.ID)
}

func TestDeliveryKey(t *testing.T) {
	delivery := Delivery{CustomerID: "c1", DeliveryPartnerID: "p1", Date: "2026-10-15"}
	assert.Equal(t, "c1_p1_2026-10-15", delivery.Key().String())
}
