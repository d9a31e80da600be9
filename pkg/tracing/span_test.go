package tracing

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestSpanTree(t *testing.T) {
	ctx, root := Start(context.Background(), "search", "req-1")
	_, expand := Start(ctx, "expand", "ignored")
	expand.Set("terms", 3)
	expand.End()
	_, rank := Start(ctx, "rank", "")
	rank.End()
	root.End()

	if expand.TraceID != "req-1" {
		t.Errorf("child trace id = %q", expand.TraceID)
	}
	kids := root.Children()
	if len(kids) != 2 || kids[0].Name != "expand" || kids[1].Name != "rank" {
		t.Fatalf("children = %v", kids)
	}

	var buf bytes.Buffer
	root.Log(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	out := buf.String()
	if strings.Count(out, "msg=span") != 3 || !strings.Contains(out, "terms=3") {
		t.Errorf("log output:\n%s", out)
	}
}

func TestNilSpan(t *testing.T) {
	var s *Span
	s.End()
	s.Set("k", "v")
	s.Log(slog.Default())
	if FromContext(context.Background()) != nil {
		t.Error("empty context has no span")
	}
}
