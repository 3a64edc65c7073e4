package resource

// Group releases a set of resources in reverse order of registration. It is
// used to build multi-object stages so that a failure half way through
// creation and a normal teardown share one release path.
type Group struct {
	releases []func()
}

// Add registers release to run on Release.
func (g *Group) Add(release func()) {
	g.releases = append(g.releases, release)
}

// Track registers release for v and returns v.
func Track[T any](g *Group, v T, release func(T)) T {
	g.Add(func() { release(v) })
	return v
}

func (g *Group) Len() int { return len(g.releases) }

// Release runs every registered release, newest first. Calling it again is a
// no-op.
func (g *Group) Release() {
	for i := len(g.releases) - 1; i >= 0; i-- {
		g.releases[i]()
	}
	g.releases = nil
}
