package dispatch

// CommandInfo describes a command for clients such as the MCP server.
type CommandInfo struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Params      []Param `json:"params"`
	Access      string  `json:"access,omitempty"`
}

// Catalog describes every command supported on the running platform.
func (d *Dispatcher) Catalog() []CommandInfo {
	cmds := d.Commands()
	out := make([]CommandInfo, 0, len(cmds))
	for _, c := range cmds {
		info := CommandInfo{Name: c.Name, Description: c.Description, Params: c.Params}
		if info.Params == nil {
			info.Params = []Param{}
		}
		if c.Access != nil {
			info.Access = c.Access.String()
		}
		out = append(out, info)
	}
	return out
}

// InputSchema renders the params as a JSON schema object.
func (i CommandInfo) InputSchema() map[string]any {
	props := map[string]any{}
	required := []string{}
	for _, p := range i.Params {
		prop := map[string]any{"description": p.Description}
		switch p.Type {
		case "string":
			prop["type"] = "string"
		case "number":
			prop["type"] = "number"
		case "boolean":
			prop["type"] = "boolean"
		case "object":
			prop["type"] = "object"
		case "string[]":
			prop["type"] = "array"
			prop["items"] = map[string]any{"type": "string"}
		default:
			prop["type"] = []string{"number", "string"}
		}
		props[p.Name] = prop
		if p.Required {
			required = append(required, p.Name)
		}
	}
	return map[string]any{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}
