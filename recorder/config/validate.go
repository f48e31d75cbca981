package config

import (
	"math"
	"net/url"
)

// Validate checks every numeric and path field. The first offending field
// is returned as a *FieldError.
func (c *Config) Validate() error {
	if u, err := url.Parse(c.Service.URL); err != nil || u.Scheme == "" || u.Host == "" {
		return &FieldError{Field: "service.url", Value: c.Service.URL, Reason: "must be an absolute URL"}
	}
	if c.Service.TimeoutSeconds < 0 {
		return &FieldError{Field: "service.timeout_seconds", Value: c.Service.TimeoutSeconds, Reason: "must be >= 0"}
	}
	if c.Service.Asset == "" {
		return &FieldError{Field: "service.asset", Value: `""`, Reason: "must name the engine definition"}
	}
	if err := c.Instances.Validate(); err != nil {
		return err
	}
	if err := c.Recording.Validate(); err != nil {
		return err
	}
	if err := c.Export.Validate(); err != nil {
		return err
	}
	for field, v := range map[string]string{
		"paths.engines": c.Paths.Engines,
		"paths.exports": c.Paths.Exports,
	} {
		if v == "" {
			return &FieldError{Field: field, Value: `""`, Reason: "must not be empty"}
		}
	}
	return nil
}

// Validate checks pool sizing.
func (i InstancesConfig) Validate() error {
	if i.Capacity < 1 {
		return &FieldError{Field: "instances.capacity", Value: i.Capacity, Reason: "must be >= 1"}
	}
	if i.Usable < 1 || i.Usable > i.Capacity {
		return &FieldError{Field: "instances.usable", Value: i.Usable, Reason: "must be in 1..capacity"}
	}
	return nil
}

// Validate checks the grid and sample parameters.
func (r RecordingConfig) Validate() error {
	if r.SampleLength < 1 {
		return &FieldError{Field: "recording.sample_length", Value: r.SampleLength, Reason: "must be >= 1"}
	}
	if r.PrerunCount < 0 {
		return &FieldError{Field: "recording.prerun_count", Value: r.PrerunCount, Reason: "must be >= 0"}
	}
	if len(r.RPMs) == 0 {
		g := r.Generate
		if g == nil {
			return &FieldError{Field: "recording.rpms", Value: "[]", Reason: "list rpms or configure generate"}
		}
		if g.Step <= 0 {
			return &FieldError{Field: "recording.generate.step", Value: g.Step, Reason: "must be > 0"}
		}
		if g.Min <= 0 || g.Max < g.Min {
			return &FieldError{Field: "recording.generate.max", Value: g.Max, Reason: "must be >= min > 0"}
		}
		if g.Frequency <= 0 {
			return &FieldError{Field: "recording.generate.frequency", Value: g.Frequency, Reason: "must be > 0"}
		}
	}
	seen := make(map[int]bool)
	for _, p := range r.RPMs {
		if p.RPM <= 0 {
			return &FieldError{Field: "recording.rpms.rpm", Value: p.RPM, Reason: "must be > 0"}
		}
		if p.Frequency <= 0 {
			return &FieldError{Field: "recording.rpms.frequency", Value: p.Frequency, Reason: "must be > 0"}
		}
		if seen[p.RPM] {
			return &FieldError{Field: "recording.rpms.rpm", Value: p.RPM, Reason: "listed twice"}
		}
		seen[p.RPM] = true
	}
	if len(r.Throttles) == 0 {
		return &FieldError{Field: "recording.throttles", Value: "[]", Reason: "at least one throttle required"}
	}
	seen = make(map[int]bool)
	for _, t := range r.Throttles {
		if t < 0 || t > 100 {
			return &FieldError{Field: "recording.throttles", Value: t, Reason: "must be in 0..100"}
		}
		if seen[t] {
			return &FieldError{Field: "recording.throttles", Value: t, Reason: "listed twice"}
		}
		seen[t] = true
	}
	return nil
}

// Validate checks the export defaults.
func (e ExportConfig) Validate() error {
	if e.IdleRPM <= 0 {
		return &FieldError{Field: "export.idle_rpm", Value: e.IdleRPM, Reason: "must be > 0"}
	}
	if e.MaxRPM <= e.IdleRPM {
		return &FieldError{Field: "export.max_rpm", Value: e.MaxRPM, Reason: "must exceed idle_rpm"}
	}
	if e.StaticFriction < 0 || math.IsNaN(e.StaticFriction) || math.IsInf(e.StaticFriction, 0) {
		return &FieldError{Field: "export.static_friction", Value: e.StaticFriction, Reason: "must be a finite value >= 0"}
	}
	if e.DynamicFriction < 0 || math.IsNaN(e.DynamicFriction) || math.IsInf(e.DynamicFriction, 0) {
		return &FieldError{Field: "export.dynamic_friction", Value: e.DynamicFriction, Reason: "must be a finite value >= 0"}
	}
	if e.StarterSound < 0 {
		return &FieldError{Field: "export.starter_sound", Value: e.StarterSound, Reason: "must be >= 0"}
	}
	return nil
}
