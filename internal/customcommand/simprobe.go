package customcommand

import "context"

// SimProbe is a scriptable WindowProbe for tests.
type SimProbe struct {
	Title          string
	RunningProcess map[string]bool
	Err            error
}

func (p *SimProbe) ActiveWindowTitle(ctx context.Context) (string, error) {
	return p.Title, p.Err
}

func (p *SimProbe) IsProcessRunning(ctx context.Context, name string) (bool, error) {
	if p.Err != nil {
		return false, p.Err
	}
	return p.RunningProcess[name], nil
}
