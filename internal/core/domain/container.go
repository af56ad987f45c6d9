package domain

// Container represents a managed service as the backend reports it.
// Name is the unique key; everything else is descriptive.
type Container struct {
	Name      string   `json:"name"`
	Status    Status   `json:"status"`
	Installed bool     `json:"installed"`
	Port      string   `json:"port,omitempty"`
	Image     string   `json:"image,omitempty"`
	Volumes   []string `json:"volumes,omitempty"`
	Network   string   `json:"network,omitempty"`
}

// StatusesOf returns the statuses carried by a containers listing as a
// full snapshot. Containers with no recognizable status are left out.
func StatusesOf(containers []Container) map[string]Status {
	statuses := make(map[string]Status, len(containers))
	for _, c := range containers {
		if c.Name == "" || !c.Status.Valid() {
			continue
		}
		statuses[c.Name] = c.Status
	}
	return statuses
}
