package vision

import "testing"

func TestParseReplyPlainJSON(t *testing.T) {
	r, err := parseReply(`{"is_vehicle": true, "severity": 64.5, "damage_parts": ["hood", "windshield"], "confidence": 0.82}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !r.IsVehicle || r.Severity != 64.5 || r.Confidence != 0.82 {
		t.Fatalf("unexpected reply: %+v", r)
	}
	if len(r.DamageParts) != 2 || r.DamageParts[0] != "hood" {
		t.Fatalf("unexpected parts: %v", r.DamageParts)
	}
}

func TestParseReplyStripsMarkdownFence(t *testing.T) {
	content := "```json\n{\"is_vehicle\": true, \"severity\": 40, \"damage_parts\": [], \"confidence\": 0.7}\n```"
	r, err := parseReply(content)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Severity != 40 || r.Confidence != 0.7 {
		t.Fatalf("unexpected reply: %+v", r)
	}
}

func TestParseReplyRegexFallbackOnMalformedJSON(t *testing.T) {
	// Trailing comma makes this invalid JSON.
	content := `{"is_vehicle": true, "severity": 55.5, "damage_parts": ["front_bumper", "headlight"], "confidence": 0.9,}`
	r, err := parseReply(content)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !r.IsVehicle {
		t.Fatal("expected is_vehicle true")
	}
	if r.Severity != 55.5 {
		t.Fatalf("expected severity 55.5, got %v", r.Severity)
	}
	if r.Confidence != 0.9 {
		t.Fatalf("expected confidence 0.9, got %v", r.Confidence)
	}
	if len(r.DamageParts) != 2 || r.DamageParts[1] != "headlight" {
		t.Fatalf("unexpected parts: %v", r.DamageParts)
	}
}

func TestParseReplyFallbackNonVehicle(t *testing.T) {
	r, err := parseReply(`The image is not a car. {"is_vehicle": false, "severity": 0,}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.IsVehicle {
		t.Fatal("expected is_vehicle false")
	}
}

func TestParseReplyRejectsUnusableContent(t *testing.T) {
	if _, err := parseReply("I cannot assess this image."); err == nil {
		t.Fatal("expected error for content without fields")
	}
}
