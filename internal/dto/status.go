package dto

type StatusDTO struct {
	App     AppStatusDTO     `json:"app"`
	Storage StorageStatusDTO `json:"storage"`
	Events  EventsStatusDTO  `json:"events"`
}

type AppStatusDTO struct {
	Name       string `json:"name"`
	Version    string `json:"version"`
	Commit     string `json:"commit"`
	StartedAt  string `json:"started_at"`
	UptimeSec  int64  `json:"uptime_sec"`
	SafeMode   bool   `json:"safe_mode"`
	ConfigPath string `json:"config_path,omitempty"`
	Timezone   string `json:"timezone"`
}

type StorageStatusDTO struct {
	DBPath         string `json:"db_path"`
	SchemaVersion  int    `json:"schema_version"`
	SafeModeReason string `json:"safe_mode_reason,omitempty"`
}

type EventsStatusDTO struct {
	Subscribers int `json:"subscribers"`
}
