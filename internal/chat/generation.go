package chat

import "context"

type generationProtocol struct {
	estimate string
}

func (p generationProtocol) handle(_ context.Context, t *Turn) (Result, error) {
	if normalize(t.Text) == "/exit-generation" {
		return idle(msgGenerationExited), nil
	}
	return t.stay(generationWaiting(p.estimate)), nil
}
