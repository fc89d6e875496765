package models

type Setting struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}
