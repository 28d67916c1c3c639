package results

import (
	"encoding/json"
	"fmt"
	"os"
)

// WriteJSON writes the run record to filename as indented JSON.
func (r *Results) WriteJSON(filename string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("encode run record: %w", err)
	}
	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("write run record: %w", err)
	}
	return nil
}

// ReadJSON loads a run record written by WriteJSON.
func ReadJSON(filename string) (*Results, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("read run record: %w", err)
	}
	var r Results
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decode run record %s: %w", filename, err)
	}
	return &r, nil
}

// WriteJSON writes the sweep record to filename as indented JSON.
func (s *SweepResults) WriteJSON(filename string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encode sweep record: %w", err)
	}
	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("write sweep record: %w", err)
	}
	return nil
}

// ReadSweepJSON loads a sweep record written by WriteJSON.
func ReadSweepJSON(filename string) (*SweepResults, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("read sweep record: %w", err)
	}
	var s SweepResults
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode sweep record %s: %w", filename, err)
	}
	return &s, nil
}
