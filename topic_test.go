package mq

import (
	"strings"
	"testing"
)

func TestValidatePublishTopic(t *testing.T) {
	tests := []struct {
		name    string
		topic   string
		wantErr bool
	}{
		{"valid simple", "sensors/temperature", false},
		{"valid multi-level", "home/room1/sensor/temp", false},
		{"empty topic", "", true},
		{"wildcard plus", "sensors/+/temp", true},
		{"wildcard hash", "sensors/#", true},
		{"null byte", "sensors\x00temp", true},
		{"too long", strings.Repeat("a", DefaultMaxTopicLength+1), true},
		{"max length ok", strings.Repeat("a", DefaultMaxTopicLength), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validatePublishTopic(tt.topic, 0)
			if (err != nil) != tt.wantErr {
				t.Errorf("validatePublishTopic() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateSubscribeTopic(t *testing.T) {
	tests := []struct {
		name    string
		topic   string
		wantErr bool
	}{
		{"valid simple", "sensors/temperature", false},
		{"valid single wildcard", "sensors/+/temp", false},
		{"valid multi wildcard", "sensors/#", false},
		{"valid multi wildcard deep", "sensors/room1/#", false},
		{"valid all wildcard", "#", false},
		{"valid multiple plus", "+/+/+", false},
		{"empty topic", "", true},
		{"invalid plus not alone", "sensors/+temp/data", true},
		{"invalid hash not alone", "sensors/#temp", true},
		{"invalid hash not last", "sensors/#/temp", true},
		{"null byte", "sensors\x00temp", true},
		{"too long", strings.Repeat("a", DefaultMaxTopicLength+1), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateSubscribeTopic(tt.topic, 0)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateSubscribeTopic() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidatePayload(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		wantErr bool
	}{
		{"empty", 0, false},
		{"small", 100, false},
		{"1MB", 1024 * 1024, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := make([]byte, tt.size)
			err := validatePayload(payload, 0)
			if (err != nil) != tt.wantErr {
				t.Errorf("validatePayload() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCustomTopicLimit(t *testing.T) {
	const limit = 10

	if err := validatePublishTopic("short", limit); err != nil {
		t.Errorf("expected short topic to pass, got error: %v", err)
	}
	if err := validatePublishTopic("this-is-too-long", limit); err == nil {
		t.Error("expected long topic to fail with custom limit")
	}
	if err := validateSubscribeTopic("short", limit); err != nil {
		t.Errorf("expected short topic filter to pass, got error: %v", err)
	}
	if err := validateSubscribeTopic("this-is-too-long", limit); err == nil {
		t.Error("expected long topic filter to fail with custom limit")
	}
}

func TestCustomPayloadLimit(t *testing.T) {
	const limit = 100

	if err := validatePayload(make([]byte, 50), limit); err != nil {
		t.Errorf("expected small payload to pass, got error: %v", err)
	}
	if err := validatePayload(make([]byte, 200), limit); err == nil {
		t.Error("expected large payload to fail with custom limit")
	}
}

func FuzzValidatePublishTopic(f *testing.F) {
	f.Add("sensors/temperature")
	f.Add("home/room1/temp")
	f.Add("")
	f.Add("sensors/+/temp")
	f.Add("sensors/#")

	f.Fuzz(func(t *testing.T, topic string) {
		_ = validatePublishTopic(topic, 0)
	})
}

func FuzzValidateSubscribeTopic(f *testing.F) {
	f.Add("sensors/temperature")
	f.Add("sensors/+/temp")
	f.Add("sensors/#")
	f.Add("+/+/+")
	f.Add("#")

	f.Fuzz(func(t *testing.T, topic string) {
		_ = validateSubscribeTopic(topic, 0)
	})
}
