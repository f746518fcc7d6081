package embedding

// Status is the outcome of validating one backend configuration.
type Status struct {
	Provider  string `json:"provider"`
	Model     string `json:"model,omitempty"`
	Dimension int    `json:"dimension,omitempty"`
	OK        bool   `json:"ok"`
	Error     string `json:"error,omitempty"`
}

// Validate constructs the backend and checks that its probe vector has the
// expected width. No request is sent.
func Validate(cfg Config) Status {
	st := Status{Provider: cfg.Provider}

	p, err := New(cfg)
	if err != nil {
		st.Error = err.Error()
		return st
	}
	st.Provider = p.Name()
	st.Model = p.Model()
	st.Dimension = p.Dimension()

	if probe := p.Probe(); len(probe) != p.Dimension() || len(probe) == 0 {
		st.Error = "probe vector has the wrong length"
		return st
	}
	st.OK = true
	return st
}

// ValidateAll validates every supported provider with its default settings,
// overlaid by the current selection for the selected provider.
func ValidateAll(current Config) []Status {
	out := make([]Status, 0, len(Providers))
	for _, name := range Providers {
		cfg := Config{Provider: name}
		if current.Provider == name {
			cfg = current
		}
		out = append(out, Validate(cfg))
	}
	return out
}
