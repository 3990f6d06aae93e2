package pipeline

import (
	"fmt"
	"path"
	"strings"

	"github.com/andreyxaxa/photo-pipeline/internal/entity"
)

type Verdict int

const (
	Accept Verdict = iota
	Drop
	Escalate
)

func (v Verdict) String() string {
	switch v {
	case Accept:
		return "accept"
	case Drop:
		return "drop"
	case Escalate:
		return "escalate"
	default:
		return "unknown"
	}
}

type GateConfig struct {
	AllowedExtensions []string
	MetadataFields    []string
	StatusValues      []string
}

// Gate checks required fields and enumerations per kind. It never fails: a
// bad event gets a Drop verdict, a blob with a disallowed extension gets
// Escalate.
type Gate struct {
	extensions map[string]struct{}
	fields     map[entity.Field]struct{}
	statuses   map[entity.ReviewStatus]struct{}
}

func NewGate(cfg GateConfig) (*Gate, error) {
	g := &Gate{
		extensions: make(map[string]struct{}, len(cfg.AllowedExtensions)),
		fields:     make(map[entity.Field]struct{}, len(cfg.MetadataFields)),
		statuses:   make(map[entity.ReviewStatus]struct{}, len(cfg.StatusValues)),
	}

	for _, ext := range cfg.AllowedExtensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		g.extensions[ext] = struct{}{}
	}

	for _, name := range cfg.MetadataFields {
		f, ok := entity.MetadataField(name)
		if !ok {
			return nil, fmt.Errorf("Gate - NewGate: unknown metadata field %q", name)
		}
		g.fields[f] = struct{}{}
	}

	for _, s := range cfg.StatusValues {
		st, err := entity.ParseReviewStatus(strings.TrimSpace(s))
		if err != nil {
			return nil, fmt.Errorf("Gate - NewGate: %w", err)
		}
		g.statuses[st] = struct{}{}
	}

	return g, nil
}

// Check returns the event with enumerated values resolved, the verdict and,
// unless accepted, the reason.
func (g *Gate) Check(ev entity.Event) (entity.Event, Verdict, string) {
	switch ev.Kind {
	case entity.KindBlobCreated:
		return g.checkBlob(ev)
	case entity.KindMetadataUpdate:
		return g.checkMetadata(ev)
	case entity.KindStatusUpdate:
		return g.checkStatus(ev)
	case entity.KindCleanup:
		if ev.Cleanup == nil || len(strings.TrimSpace(string(ev.Cleanup.Body))) == 0 {
			return ev, Drop, "empty dead-letter body"
		}
		return ev, Accept, ""
	default:
		return ev, Drop, fmt.Sprintf("unknown kind %q", ev.Kind)
	}
}

func (g *Gate) checkBlob(ev entity.Event) (entity.Event, Verdict, string) {
	b := ev.Blob
	switch {
	case b == nil:
		return ev, Drop, "missing blob payload"
	case b.Bucket == "":
		return ev, Drop, "missing bucket"
	case b.Key == "":
		return ev, Drop, "missing key"
	}

	ext := strings.ToLower(path.Ext(b.Key))
	if _, ok := g.extensions[ext]; !ok {
		return ev, Escalate, fmt.Sprintf("file extension %q is not allowed", ext)
	}

	return ev, Accept, ""
}

func (g *Gate) checkMetadata(ev entity.Event) (entity.Event, Verdict, string) {
	m := ev.Metadata
	switch {
	case m == nil:
		return ev, Drop, "missing metadata payload"
	case m.ID == "":
		return ev, Drop, "missing id"
	case m.Name == "":
		return ev, Drop, "missing metadata field"
	case m.Value == "":
		return ev, Drop, "missing value"
	}

	f, ok := entity.MetadataField(m.Name)
	if !ok {
		return ev, Drop, fmt.Sprintf("unknown metadata field %q", m.Name)
	}
	if _, ok := g.fields[f]; !ok {
		return ev, Drop, fmt.Sprintf("metadata field %q is not accepted", m.Name)
	}

	resolved := *m
	resolved.Field = f
	ev.Metadata = &resolved

	return ev, Accept, ""
}

func (g *Gate) checkStatus(ev entity.Event) (entity.Event, Verdict, string) {
	s := ev.Status
	switch {
	case s == nil:
		return ev, Drop, "missing status payload"
	case s.ID == "":
		return ev, Drop, "missing id"
	case s.Value == "":
		return ev, Drop, "missing status"
	}

	st, err := entity.ParseReviewStatus(s.Value)
	if err != nil {
		return ev, Drop, err.Error()
	}
	if _, ok := g.statuses[st]; !ok {
		return ev, Drop, fmt.Sprintf("status %q is not accepted", s.Value)
	}

	resolved := *s
	resolved.Status = st
	ev.Status = &resolved

	return ev, Accept, ""
}
