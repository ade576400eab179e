package launch

// Plan is the fully resolved process invocation: built fresh per launch,
// handed to the supervisor, discarded after spawn.
type Plan struct {
	JavaExecutable string
	JVMArgs        []string
	MainClass      string
	GameArgs       []string
	Classpath      []string
	NativesDir     string
	WorkingDir     string
	VersionID      string
}

// CommandLine assembles the argument vector passed to the runtime
// executable, in JVM-args / main-class / game-args order.
func (p *Plan) CommandLine() []string {
	args := make([]string, 0, len(p.JVMArgs)+len(p.GameArgs)+1)
	args = append(args, p.JVMArgs...)
	args = append(args, p.MainClass)
	args = append(args, p.GameArgs...)
	return args
}
