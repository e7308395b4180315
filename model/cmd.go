package model

// Cmd is a model of the OS command.
type Cmd struct {
	Name string   `json:"name"`
	Args []string `json:"args"`
	Env  []string `json:"env"`
	Dir  string   `json:"dir"`
	Log  bool     `json:"-"`
}
