package config

// RanchConfig is the top-level YAML structure.
type RanchConfig struct {
	Version    string         `yaml:"version"`
	Engine     EngineConf     `yaml:"engine"`
	Alerts     AlertsConf     `yaml:"alerts"`
	Hub        HubConf        `yaml:"hub"`
	Feed       FeedConf       `yaml:"feed"`
	Boundaries []BoundaryDef  `yaml:"boundaries"`
	Entities   []EntitySeed   `yaml:"entities"`
	Resources  []ResourceSeed `yaml:"resources"`
}

// EngineConf holds tunable ingest settings.
type EngineConf struct {
	SampleQueueDepth int `yaml:"sample_queue_depth"`
}

// AlertsConf controls the notification lifecycle.
type AlertsConf struct {
	MaxNotifications     int  `yaml:"max_notifications"`
	DefaultExpirySeconds int  `yaml:"default_expiry_seconds"`
	ExpireViolations     bool `yaml:"expire_violations"`
}

// HubConf controls subscriber queues and heartbeats.
type HubConf struct {
	SendQueueSize     int `yaml:"send_queue_size"`
	PingPeriodSeconds int `yaml:"ping_period_seconds"`
	MissedPings       int `yaml:"missed_pings"`
}

// FeedConf configures the position producers.
type FeedConf struct {
	Simulator SimulatorConf `yaml:"simulator"`
	MQTT      MQTTConf      `yaml:"mqtt"`
}

// SimulatorConf drives the random-walk position generator.
type SimulatorConf struct {
	Enabled       bool    `yaml:"enabled"`
	MinIntervalMs int     `yaml:"min_interval_ms"`
	MaxIntervalMs int     `yaml:"max_interval_ms"`
	DriftMeters   float64 `yaml:"drift_meters"`
	EscapeChance  float64 `yaml:"escape_chance"`
}

// MQTTConf configures the collar-feed subscriber. An empty broker
// disables the feed.
type MQTTConf struct {
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id"`
	Topic    string `yaml:"topic"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// BoundaryDef is a geofence seed. Coordinates are [lng, lat] pairs;
// the ring may be left open and is closed on load.
type BoundaryDef struct {
	ID          string       `yaml:"id"`
	Name        string       `yaml:"name"`
	Active      bool         `yaml:"active"`
	Coordinates [][2]float64 `yaml:"coordinates"`
}

// EntitySeed is an animal present at startup.
type EntitySeed struct {
	ID     string  `yaml:"id"`
	Name   string  `yaml:"name"`
	Age    int     `yaml:"age"`
	Health string  `yaml:"health"`
	Lng    float64 `yaml:"lng"`
	Lat    float64 `yaml:"lat"`
}

// ResourceSeed is a static point of interest present at startup.
type ResourceSeed struct {
	ID   string  `yaml:"id"`
	Name string  `yaml:"name"`
	Kind string  `yaml:"kind"`
	Lng  float64 `yaml:"lng"`
	Lat  float64 `yaml:"lat"`
}
