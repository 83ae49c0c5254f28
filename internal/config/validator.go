package config

import (
	"fmt"
	"strings"
)

// Validate checks the config for:
//   - Duplicate IDs across boundaries, entities, and resources
//   - Coordinate ranges on every seed position and boundary vertex
//   - Required fields and sane tunables
func Validate(cfg *RanchConfig) error {
	if cfg.Version == "" {
		return fmt.Errorf("config: version is required")
	}
	ids := make(map[string]string) // id → location
	var errs []string

	for i, b := range cfg.Boundaries {
		if b.ID == "" {
			errs = append(errs, fmt.Sprintf("boundaries[%d]: id is required", i))
			continue
		}
		loc := fmt.Sprintf("boundary %s", b.ID)
		if prev, ok := ids[b.ID]; ok {
			errs = append(errs, fmt.Sprintf("duplicate id %q (first seen at %s, again at %s)", b.ID, prev, loc))
		} else {
			ids[b.ID] = loc
		}
		if b.Name == "" {
			errs = append(errs, fmt.Sprintf("%s: name is required", loc))
		}
		if len(b.Coordinates) < 3 {
			errs = append(errs, fmt.Sprintf("%s: polygon needs at least 3 vertices, got %d", loc, len(b.Coordinates)))
		}
		for j, c := range b.Coordinates {
			if err := checkCoordinate(c[0], c[1]); err != nil {
				errs = append(errs, fmt.Sprintf("%s.coordinates[%d]: %s", loc, j, err))
			}
		}
	}

	for i, e := range cfg.Entities {
		if e.ID == "" {
			errs = append(errs, fmt.Sprintf("entities[%d]: id is required", i))
			continue
		}
		loc := fmt.Sprintf("entity %s", e.ID)
		if prev, ok := ids[e.ID]; ok {
			errs = append(errs, fmt.Sprintf("duplicate id %q (first seen at %s, again at %s)", e.ID, prev, loc))
		} else {
			ids[e.ID] = loc
		}
		if err := checkCoordinate(e.Lng, e.Lat); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %s", loc, err))
		}
	}

	for i, r := range cfg.Resources {
		if r.ID == "" {
			errs = append(errs, fmt.Sprintf("resources[%d]: id is required", i))
			continue
		}
		loc := fmt.Sprintf("resource %s", r.ID)
		if prev, ok := ids[r.ID]; ok {
			errs = append(errs, fmt.Sprintf("duplicate id %q (first seen at %s, again at %s)", r.ID, prev, loc))
		} else {
			ids[r.ID] = loc
		}
		if err := checkCoordinate(r.Lng, r.Lat); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %s", loc, err))
		}
	}

	if cfg.Feed.Simulator.MinIntervalMs > cfg.Feed.Simulator.MaxIntervalMs {
		errs = append(errs, "feed.simulator: min_interval_ms must not exceed max_interval_ms")
	}
	if c := cfg.Feed.Simulator.EscapeChance; c < 0 || c > 1 {
		errs = append(errs, "feed.simulator: escape_chance must be in [0, 1]")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func checkCoordinate(lng, lat float64) error {
	if lng < -180 || lng > 180 {
		return fmt.Errorf("longitude %v out of range", lng)
	}
	if lat < -90 || lat > 90 {
		return fmt.Errorf("latitude %v out of range", lat)
	}
	return nil
}
