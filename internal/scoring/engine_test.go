package scoring

import (
	"testing"
	"time"

	"dialer-platform/internal/leads"
)

// Wednesday 2026-01-07 15:00 UTC. Hour 15 and Wednesday carry the highest
// default multipliers, which makes overflow clamping reachable.
var wedAfternoon = time.Date(2026, 1, 7, 15, 0, 0, 0, time.UTC)

func TestCalculateScore_AlwaysInBounds(t *testing.T) {
	m := NewDefaultModel()

	cases := []LeadFeatures{
		{Timezone: "UTC"},
		{DialAttempts: 50, Timezone: "UTC"}, // heavy penalty drives below zero before clamp
		{
			Timezone: "UTC",
			PreviousOutcomes: map[leads.DispositionCode]int{
				leads.DispositionSale: 20,
			},
			PositiveOutcomes: 20,
		},
		{
			Timezone:    "UTC",
			RecencyDays: 1,
			PreviousOutcomes: map[leads.DispositionCode]int{
				leads.DispositionDoNotCall: 10,
			},
			NegativeOutcomes: 10,
		},
	}
	for i, f := range cases {
		score, contact, conversion := calculateScore(f, m, wedAfternoon)
		if score < 0 || score > 100 {
			t.Fatalf("case %d: score out of bounds: %d", i, score)
		}
		if contact < 0 || contact > 1 {
			t.Fatalf("case %d: contact probability out of bounds: %v", i, contact)
		}
		if conversion < 0 || conversion > 1 {
			t.Fatalf("case %d: conversion probability out of bounds: %v", i, conversion)
		}
	}
}

func TestCalculateScore_NoHistoryDefaults(t *testing.T) {
	m := NewDefaultModel()
	f := LeadFeatures{Timezone: "UTC"}

	score, _, conversion := calculateScore(f, m, wedAfternoon)
	// base 50 * 1.3 (hour 15) * 1.2 (Wednesday) = 78
	if score != 78 {
		t.Fatalf("expected 78, got %d", score)
	}
	if conversion != 0.5 {
		t.Fatalf("expected neutral conversion probability, got %v", conversion)
	}
}

func TestCalculateScore_UnknownDispositionIsNeutral(t *testing.T) {
	m := NewDefaultModel()
	known := LeadFeatures{Timezone: "UTC"}
	unknown := LeadFeatures{
		Timezone:         "UTC",
		PreviousOutcomes: map[leads.DispositionCode]int{"MYSTERY_CODE": 3},
	}

	a, _, _ := calculateScore(known, m, wedAfternoon)
	b, _, _ := calculateScore(unknown, m, wedAfternoon)
	if a != b {
		t.Fatalf("unknown codes must contribute zero: %d vs %d", a, b)
	}
}

func TestCalculateScore_DialAttemptsPenalize(t *testing.T) {
	m := NewDefaultModel()
	fresh, _, _ := calculateScore(LeadFeatures{Timezone: "UTC"}, m, wedAfternoon)
	dialed, _, _ := calculateScore(LeadFeatures{DialAttempts: 5, Timezone: "UTC"}, m, wedAfternoon)
	if dialed >= fresh {
		t.Fatalf("expected over-dialed lead to score lower: %d vs %d", dialed, fresh)
	}
}

func TestCalculateScore_InvalidTimezoneNeverThrows(t *testing.T) {
	m := NewDefaultModel()
	score, _, _ := calculateScore(LeadFeatures{Timezone: "Not/A_Zone"}, m, wedAfternoon)
	if score < 0 || score > 100 {
		t.Fatalf("score out of bounds with bad timezone: %d", score)
	}
}

func TestCalculateBestTimeSlots_CapOrderAndCutoff(t *testing.T) {
	slots := calculateBestTimeSlots(NewDefaultModel())
	if len(slots) == 0 {
		t.Fatalf("expected some qualifying slots")
	}
	if len(slots) > 10 {
		t.Fatalf("expected at most 10 slots, got %d", len(slots))
	}
	for i, s := range slots {
		if s.Probability < bestSlotMinProbability {
			t.Fatalf("slot %d below cutoff: %v", i, s.Probability)
		}
		if s.Probability > 1 {
			t.Fatalf("slot %d above 1: %v", i, s.Probability)
		}
		if s.Hour < 8 || s.Hour > 20 {
			t.Fatalf("slot %d outside business hours: %d", i, s.Hour)
		}
		if i > 0 && slots[i-1].Probability < s.Probability {
			t.Fatalf("slots not sorted descending at %d", i)
		}
	}
}

func TestExtractFeatures_History(t *testing.T) {
	last := wedAfternoon.Add(-48 * time.Hour)
	lead := leads.LeadData{
		ID:             "l1",
		OrganizationID: "org1",
		State:          "TX",
		DialAttempts:   3,
		LastDialedAt:   &last,
		Dispositions: []leads.Disposition{
			{Code: leads.DispositionSale, CallDurationSeconds: 300},
			{Code: leads.DispositionNoAnswer},
			{Code: leads.DispositionNotInterested, CallDurationSeconds: 60},
		},
	}

	f := ExtractFeatures(lead, wedAfternoon)
	if f.DialAttempts != 3 {
		t.Fatalf("dial attempts: %d", f.DialAttempts)
	}
	if f.RecencyDays != 2 {
		t.Fatalf("recency days: %v", f.RecencyDays)
	}
	if f.PositiveOutcomes != 1 || f.NegativeOutcomes != 1 {
		t.Fatalf("outcome counts: %d/%d", f.PositiveOutcomes, f.NegativeOutcomes)
	}
	if f.PreviousOutcomes[leads.DispositionNoAnswer] != 1 {
		t.Fatalf("histogram missing NO_ANSWER")
	}
	if f.AvgCallDurationSeconds != 180 {
		t.Fatalf("avg duration: %v", f.AvgCallDurationSeconds)
	}
	if f.Timezone != "America/Chicago" {
		t.Fatalf("timezone: %q", f.Timezone)
	}
}

func TestExtractFeatures_NeverDialed(t *testing.T) {
	f := ExtractFeatures(leads.LeadData{ID: "l1", OrganizationID: "org1"}, wedAfternoon)
	if f.RecencyDays != 0 {
		t.Fatalf("expected zero recency for never-dialed lead, got %v", f.RecencyDays)
	}
	if f.PreviousOutcomes != nil {
		t.Fatalf("expected nil histogram with no history")
	}
}
