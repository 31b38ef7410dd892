package vision

import (
	"encoding/json"
	"errors"
	"regexp"
	"strconv"
	"strings"
)

// reply is the JSON shape the rubric asks the model for.
type reply struct {
	IsVehicle   bool     `json:"is_vehicle"`
	Severity    float64  `json:"severity"`
	DamageParts []string `json:"damage_parts"`
	Confidence  float64  `json:"confidence"`
}

var (
	fenceRe      = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")
	severityRe   = regexp.MustCompile(`"severity"\s*:\s*(-?[0-9]+(?:\.[0-9]+)?)`)
	confidenceRe = regexp.MustCompile(`"confidence"\s*:\s*(-?[0-9]+(?:\.[0-9]+)?)`)
	isVehicleRe  = regexp.MustCompile(`"is_vehicle"\s*:\s*(true|false)`)
	partsRe      = regexp.MustCompile(`(?s)"damage_parts"\s*:\s*\[(.*?)\]`)
	stringRe     = regexp.MustCompile(`"([^"]*)"`)
)

// parseReply decodes the model output, tolerating markdown code fences and,
// for malformed JSON, falling back to regex field extraction.
func parseReply(content string) (*reply, error) {
	content = strings.TrimSpace(content)
	if m := fenceRe.FindStringSubmatch(content); m != nil {
		content = m[1]
	}

	var r reply
	if err := json.Unmarshal([]byte(content), &r); err == nil {
		return &r, nil
	}
	return scrapeReply(content)
}

// scrapeReply pulls individual fields out of text the JSON decoder rejected.
// is_vehicle must at least be present; everything else defaults to zero.
func scrapeReply(content string) (*reply, error) {
	vm := isVehicleRe.FindStringSubmatch(content)
	if vm == nil {
		return nil, errors.New("reply contains no is_vehicle field")
	}

	r := &reply{IsVehicle: vm[1] == "true"}
	if m := severityRe.FindStringSubmatch(content); m != nil {
		r.Severity, _ = strconv.ParseFloat(m[1], 64)
	}
	if m := confidenceRe.FindStringSubmatch(content); m != nil {
		r.Confidence, _ = strconv.ParseFloat(m[1], 64)
	}
	if m := partsRe.FindStringSubmatch(content); m != nil {
		for _, s := range stringRe.FindAllStringSubmatch(m[1], -1) {
			r.DamageParts = append(r.DamageParts, s[1])
		}
	}
	return r, nil
}
