package request

// Args is the argument list handed to the backend.
type Args []string

// Builder assembles backend arguments. Baseline flags are added to every
// request on top of the request's own flags.
type Builder struct {
	Baseline FlagSet
}

// Validate checks the request without building arguments.
func Validate(req *CompilationRequest) error {
	if req == nil {
		return &ArgumentError{Field: "request", Reason: "missing"}
	}
	if len(req.Source) == 0 {
		return &ArgumentError{Field: "source", Reason: "empty"}
	}
	if req.EntryPoint == "" {
		return &ArgumentError{Field: "entry point", Reason: "empty"}
	}
	if req.Profile == "" {
		return &ArgumentError{Field: "profile", Reason: "empty"}
	}
	seen := make(map[string]struct{}, len(req.Defines))
	for _, d := range req.Defines {
		if d.Name == "" {
			return &ArgumentError{Field: "define", Reason: "empty name"}
		}
		if _, dup := seen[d.Name]; dup {
			return &ArgumentError{Field: "define", Reason: "duplicate name " + d.Name}
		}
		seen[d.Name] = struct{}{}
	}
	for _, kind := range req.Extras {
		if !kind.Valid() {
			return &ArgumentError{Field: "extras", Reason: "unknown output kind " + kind.String()}
		}
	}
	return checkFlags(req.Flags)
}

func checkFlags(fs FlagSet) error {
	if a, b, bad := fs.conflicts(); bad {
		return &ArgumentError{Field: "flags", Reason: a.String() + " conflicts with " + b.String()}
	}
	return nil
}

// Build validates req and renders its argument list. Defines keep the
// caller's order.
func (b Builder) Build(req *CompilationRequest) (Args, error) {
	if err := Validate(req); err != nil {
		return nil, err
	}
	set := b.Baseline.Union(req.Flags)
	if err := checkFlags(set); err != nil {
		return nil, err
	}
	flags := set.Flags()
	args := make(Args, 0, 4+2*len(flags)+2*len(req.Defines))
	args = append(args, "-E", req.EntryPoint, "-T", req.Profile)
	for _, f := range flags {
		args = append(args, flagArgs[f]...)
	}
	for _, d := range req.Defines {
		args = append(args, "-D", d.String())
	}
	return args, nil
}
