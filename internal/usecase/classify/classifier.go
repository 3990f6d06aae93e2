package classify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/andreyxaxa/photo-pipeline/internal/dto"
	"github.com/andreyxaxa/photo-pipeline/internal/entity"
)

// Attribute names understood on the transport side channel.
const (
	AttrKind         = "kind"
	AttrEventType    = "event_type"
	AttrMetadataType = "metadata_type"
	AttrBucket       = "bucket"
	AttrKey          = "key"
)

const (
	envelopeMessageField    = "Message"
	envelopeAttributesField = "MessageAttributes"

	objectCreatedPrefix = "ObjectCreated:"
)

// Result is either a classified message or Malformed with a reason.
type Result struct {
	Kind      entity.Kind
	Events    []entity.Event
	Enveloped bool

	Malformed bool
	Reason    string
}

func malformed(format string, args ...any) Result {
	return Result{Malformed: true, Reason: fmt.Sprintf(format, args...)}
}

type Classifier struct{}

func New() *Classifier {
	return &Classifier{}
}

// Classify normalizes one transport message. It never fails: anything it
// cannot place is reported as Malformed so the caller can skip it.
//
// Rules, in order:
//  1. the body must be a JSON object;
//  2. an object with a Message field is an envelope and is unwrapped once,
//     its MessageAttributes joining the side channel;
//  3. the kind comes from the side channel (kind, event_type, metadata_type),
//     then from the payload (kind tag, a type naming a known kind, S3
//     Records, update.status).
func (c *Classifier) Classify(raw dto.RawMessage) Result {
	doc, err := decodeObject(raw.Body)
	if err != nil {
		return malformed("body: %v", err)
	}

	attrs := make(map[string]string, len(raw.Attributes))
	for k, v := range raw.Attributes {
		attrs[k] = v
	}

	enveloped := false
	if isEnvelope(doc) {
		inner, innerAttrs, err := unwrap(doc)
		if err != nil {
			return malformed("envelope: %v", err)
		}
		if isEnvelope(inner) {
			return malformed("envelope nested more than one level")
		}

		for k, v := range innerAttrs {
			if _, ok := attrs[k]; !ok {
				attrs[k] = v
			}
		}

		doc = inner
		enveloped = true
	}

	kind, reason := kindOf(attrs, doc)
	if reason != "" {
		return malformed("%s", reason)
	}

	var events []entity.Event

	switch kind {
	case entity.KindBlobCreated:
		events, reason = blobEvents(doc)
	case entity.KindMetadataUpdate:
		events = []entity.Event{metadataEvent(attrs, doc)}
	case entity.KindStatusUpdate:
		events = []entity.Event{statusEvent(doc)}
	default:
		reason = fmt.Sprintf("kind %q is not accepted on this path", kind)
	}
	if reason != "" {
		return malformed("%s", reason)
	}

	return Result{Kind: kind, Events: events, Enveloped: enveloped}
}

// ClassifyDeadLetter turns any dead-lettered message into a cleanup request.
func (c *Classifier) ClassifyDeadLetter(raw dto.RawMessage) Result {
	attrs := make(map[string]string, len(raw.Attributes))
	for k, v := range raw.Attributes {
		attrs[k] = v
	}

	return Result{
		Kind: entity.KindCleanup,
		Events: []entity.Event{{
			Kind:    entity.KindCleanup,
			Cleanup: &entity.CleanupRequest{Body: raw.Body, Attributes: attrs},
		}},
	}
}

// BlobTargets returns the blobs a message refers to when it parses as a
// BlobCreated event.
func (c *Classifier) BlobTargets(raw dto.RawMessage) []entity.BlobRef {
	res := c.Classify(raw)
	if res.Malformed || res.Kind != entity.KindBlobCreated {
		return nil
	}

	refs := make([]entity.BlobRef, 0, len(res.Events))
	for _, ev := range res.Events {
		if ev.Blob == nil || ev.Blob.Bucket == "" || ev.Blob.Key == "" {
			continue
		}
		refs = append(refs, entity.BlobRef{Bucket: ev.Blob.Bucket, Key: ev.Blob.Key})
	}

	return refs
}

type object map[string]json.RawMessage

func decodeObject(b []byte) (object, error) {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return nil, fmt.Errorf("empty")
	}
	if b[0] != '{' {
		return nil, fmt.Errorf("not a JSON object")
	}

	var doc object
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, err
	}

	return doc, nil
}

func isEnvelope(doc object) bool {
	_, ok := doc[envelopeMessageField]
	return ok
}

// unwrap opens an envelope whose Message is either a JSON string holding an
// object or an object.
func unwrap(doc object) (object, map[string]string, error) {
	msg := doc[envelopeMessageField]

	var inner object
	var asString string
	if err := json.Unmarshal(msg, &asString); err == nil {
		o, err := decodeObject([]byte(asString))
		if err != nil {
			return nil, nil, fmt.Errorf("Message: %w", err)
		}
		inner = o
	} else {
		o, err := decodeObject(msg)
		if err != nil {
			return nil, nil, fmt.Errorf("Message: %w", err)
		}
		inner = o
	}

	attrs := map[string]string{}
	if raw, ok := doc[envelopeAttributesField]; ok {
		var entries map[string]struct {
			Value       *string `json:"Value"`
			StringValue *string `json:"StringValue"`
		}
		if err := json.Unmarshal(raw, &entries); err == nil {
			for name, e := range entries {
				switch {
				case e.StringValue != nil:
					attrs[name] = *e.StringValue
				case e.Value != nil:
					attrs[name] = *e.Value
				}
			}
		}
	}

	return inner, attrs, nil
}

var kindAliases = map[string]entity.Kind{
	"blobcreated":             entity.KindBlobCreated,
	"metadataupdate":          entity.KindMetadataUpdate,
	"metadataupdaterequested": entity.KindMetadataUpdate,
	"statusupdate":            entity.KindStatusUpdate,
	"statusupdaterequested":   entity.KindStatusUpdate,
}

func parseKind(s string) (entity.Kind, bool) {
	k, ok := kindAliases[strings.ToLower(strings.TrimSpace(s))]
	return k, ok
}

func kindOf(attrs map[string]string, doc object) (entity.Kind, string) {
	for _, name := range []string{AttrKind, AttrEventType} {
		if tag := attrs[name]; tag != "" {
			k, ok := parseKind(tag)
			if !ok {
				return "", fmt.Sprintf("unrecognized kind attribute %s=%q", name, tag)
			}
			return k, ""
		}
	}

	if attrs[AttrMetadataType] != "" {
		return entity.KindMetadataUpdate, ""
	}

	if tag := str(doc, "kind"); tag != "" {
		k, ok := parseKind(tag)
		if !ok {
			return "", fmt.Sprintf("unrecognized kind field kind=%q", tag)
		}
		return k, ""
	}

	// "type" is also an ordinary payload field, so only a known kind counts.
	if k, ok := parseKind(str(doc, "type")); ok {
		return k, ""
	}

	if _, ok := doc["Records"]; ok {
		return entity.KindBlobCreated, ""
	}

	if update := sub(doc, "update"); update != nil && str(update, "status") != "" {
		return entity.KindStatusUpdate, ""
	}

	return "", "no kind indicator"
}

type s3Record struct {
	EventSource string `json:"eventSource"`
	EventName   string `json:"eventName"`
	S3          struct {
		Bucket struct {
			Name string `json:"name"`
		} `json:"bucket"`
		Object struct {
			Key  string `json:"key"`
			Size int64  `json:"size"`
		} `json:"object"`
	} `json:"s3"`
}

func isObjectCreated(r s3Record) bool {
	if !strings.HasSuffix(r.EventSource, ":s3") {
		return false
	}
	// MinIO prefixes event names with "s3:".
	name := strings.TrimPrefix(r.EventName, "s3:")

	return strings.HasPrefix(name, objectCreatedPrefix)
}

func blobEvents(doc object) ([]entity.Event, string) {
	raw, ok := doc["Records"]
	if !ok {
		size, _ := num(doc, "size")
		return []entity.Event{{
			Kind: entity.KindBlobCreated,
			Blob: &entity.BlobCreated{
				Bucket:    str(doc, "bucket"),
				Key:       str(doc, "key"),
				EventName: str(doc, "eventName"),
				Size:      size,
			},
		}}, ""
	}

	var records []s3Record
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Sprintf("Records: %v", err)
	}

	var events []entity.Event
	for _, r := range records {
		if !isObjectCreated(r) {
			continue
		}
		events = append(events, entity.Event{
			Kind: entity.KindBlobCreated,
			Blob: &entity.BlobCreated{
				Bucket:    r.S3.Bucket.Name,
				Key:       decodeObjectKey(r.S3.Object.Key),
				EventName: r.EventName,
				Size:      r.S3.Object.Size,
			},
		})
	}

	if len(events) == 0 {
		return nil, "no ObjectCreated records"
	}

	return events, ""
}

// decodeObjectKey reverses the form encoding S3 applies to keys in
// notifications ("+" for space, %XX escapes).
func decodeObjectKey(key string) string {
	decoded, err := url.QueryUnescape(key)
	if err != nil {
		return key
	}
	return decoded
}

func metadataEvent(attrs map[string]string, doc object) entity.Event {
	name := attrs[AttrMetadataType]
	if name == "" {
		name = str(doc, "field")
	}
	if name == "" {
		name = str(doc, AttrMetadataType)
	}

	return entity.Event{
		Kind: entity.KindMetadataUpdate,
		Metadata: &entity.MetadataUpdate{
			ID:    str(doc, "id"),
			Name:  name,
			Value: scalar(doc, "value"),
		},
	}
}

func statusEvent(doc object) entity.Event {
	ev := &entity.StatusUpdate{
		ID:         str(doc, "id"),
		Value:      str(doc, "status"),
		Reason:     str(doc, "reason"),
		ReviewDate: str(doc, "date"),
	}

	if update := sub(doc, "update"); update != nil {
		if s := str(update, "status"); s != "" {
			ev.Value = s
		}
		if r := str(update, "reason"); r != "" {
			ev.Reason = r
		}
	}
	if ev.ReviewDate == "" {
		ev.ReviewDate = str(doc, "reviewDate")
	}

	return entity.Event{Kind: entity.KindStatusUpdate, Status: ev}
}

func str(doc object, key string) string {
	raw, ok := doc[key]
	if !ok {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}

	return s
}

// scalar reads strings as-is and numbers/booleans as their JSON text.
func scalar(doc object, key string) string {
	raw, ok := doc[key]
	if !ok {
		return ""
	}

	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return ""
	}

	switch t := v.(type) {
	case string:
		return t
	case float64, bool:
		return string(bytes.TrimSpace(raw))
	default:
		return ""
	}
}

func num(doc object, key string) (int64, bool) {
	raw, ok := doc[key]
	if !ok {
		return 0, false
	}

	var n int64
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, false
	}

	return n, true
}

func sub(doc object, key string) object {
	raw, ok := doc[key]
	if !ok {
		return nil
	}

	var o object
	if err := json.Unmarshal(raw, &o); err != nil {
		return nil
	}

	return o
}
