package project

// CurrentVersion is the schema version written to projects.json.
const CurrentVersion = "1.0"

// Settings are the global preferences stored next to the projects.
// AutoStartWithSystem is stored for frontends; the supervisor does not
// register itself with the OS.
type Settings struct {
	AutoStartWithSystem bool   `json:"auto_start_with_system"`
	Theme               string `json:"theme"`
	MinimizeToTray      bool   `json:"minimize_to_tray"`
	ShowNotifications   bool   `json:"show_notifications"`
}

// DefaultSettings returns the settings of a fresh install.
func DefaultSettings() Settings {
	return Settings{
		AutoStartWithSystem: true,
		Theme:               "dark",
		MinimizeToTray:      true,
		ShowNotifications:   true,
	}
}

// Document is the on-disk form of projects.json.
type Document struct {
	Version  string    `json:"version"`
	Settings Settings  `json:"settings"`
	Projects []Project `json:"projects"`
}

// DefaultDocument returns an empty document with default settings.
func DefaultDocument() Document {
	return Document{
		Version:  CurrentVersion,
		Settings: DefaultSettings(),
		Projects: []Project{},
	}
}

func (d *Document) normalize() {
	if d.Version == "" {
		d.Version = CurrentVersion
	}
	if d.Projects == nil {
		d.Projects = []Project{}
	}
	for i := range d.Projects {
		if d.Projects[i].Commands == nil {
			d.Projects[i].Commands = []string{}
		}
	}
}

func (d *Document) index(id string) int {
	for i, p := range d.Projects {
		if p.ID == id {
			return i
		}
	}
	return -1
}
