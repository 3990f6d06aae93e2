package entity

import (
	"fmt"
	"strings"
	"time"
)

// Field names a record attribute. Every attribute a message may touch is
// listed here and nowhere is a field resolved from a raw string at write time.
type Field string

const (
	FieldUploadTime        Field = "uploadTime"
	FieldSize              Field = "size"
	FieldContentType       Field = "contentType"
	FieldWidth             Field = "width"
	FieldHeight            Field = "height"
	FieldCaption           Field = "caption"
	FieldReviewDate        Field = "reviewDate"
	FieldPhotographerName  Field = "photographerName"
	FieldPhotographerEmail Field = "photographerEmail"
	FieldDescription       Field = "description"
	FieldLocation          Field = "location"
	FieldTags              Field = "tags"
	FieldStatus            Field = "status"
	FieldReason            Field = "reason"
)

type Change struct {
	Field Field
	Value any
	// IfUnset changes leave a value that is already stored in place.
	IfUnset bool
}

type Changes []Change

func Set(field Field, value any) Change {
	return Change{Field: field, Value: value}
}

func SetIfUnset(field Field, value any) Change {
	return Change{Field: field, Value: value, IfUnset: true}
}

// Fields lists the touched fields in order.
func (c Changes) Fields() []Field {
	out := make([]Field, 0, len(c))
	for _, ch := range c {
		out = append(out, ch.Field)
	}
	return out
}

type setter func(img *Image, v any) error

var setters = map[Field]setter{
	FieldUploadTime: func(img *Image, v any) error {
		t, ok := v.(time.Time)
		if !ok {
			return typeErr(FieldUploadTime, v)
		}
		img.UploadTime = &t
		return nil
	},
	FieldSize: func(img *Image, v any) error {
		n, ok := v.(int64)
		if !ok {
			return typeErr(FieldSize, v)
		}
		img.Size = &n
		return nil
	},
	FieldContentType: stringSetter(FieldContentType, func(img *Image, s *string) { img.ContentType = s }),
	FieldWidth:       intSetter(FieldWidth, func(img *Image, n *int) { img.Width = n }),
	FieldHeight:      intSetter(FieldHeight, func(img *Image, n *int) { img.Height = n }),
	FieldCaption:     stringSetter(FieldCaption, func(img *Image, s *string) { img.Caption = s }),
	FieldReviewDate:  stringSetter(FieldReviewDate, func(img *Image, s *string) { img.ReviewDate = s }),
	FieldPhotographerName: stringSetter(FieldPhotographerName, func(img *Image, s *string) {
		img.PhotographerName = s
	}),
	FieldPhotographerEmail: stringSetter(FieldPhotographerEmail, func(img *Image, s *string) {
		img.PhotographerEmail = s
	}),
	FieldDescription: stringSetter(FieldDescription, func(img *Image, s *string) { img.Description = s }),
	FieldLocation:    stringSetter(FieldLocation, func(img *Image, s *string) { img.Location = s }),
	FieldTags:        stringSetter(FieldTags, func(img *Image, s *string) { img.Tags = s }),
	FieldStatus: func(img *Image, v any) error {
		st, ok := v.(ReviewStatus)
		if !ok {
			return typeErr(FieldStatus, v)
		}
		img.Status = st
		return nil
	},
	FieldReason: stringSetter(FieldReason, func(img *Image, s *string) { img.Reason = s }),
}

func stringSetter(f Field, assign func(*Image, *string)) setter {
	return func(img *Image, v any) error {
		s, ok := v.(string)
		if !ok {
			return typeErr(f, v)
		}
		assign(img, &s)
		return nil
	}
}

func intSetter(f Field, assign func(*Image, *int)) setter {
	return func(img *Image, v any) error {
		n, ok := v.(int)
		if !ok {
			return typeErr(f, v)
		}
		assign(img, &n)
		return nil
	}
}

func typeErr(f Field, v any) error {
	return fmt.Errorf("field %s: unexpected value type %T", f, v)
}

// Apply writes the changes onto the image. Untouched fields keep their values.
func (i *Image) Apply(changes Changes) error {
	for _, ch := range changes {
		set, ok := setters[ch.Field]
		if !ok {
			return fmt.Errorf("unknown field %q", ch.Field)
		}
		if ch.IfUnset && i.has(ch.Field) {
			continue
		}
		if err := set(i, ch.Value); err != nil {
			return err
		}
	}

	return nil
}

func (i *Image) has(f Field) bool {
	switch f {
	case FieldUploadTime:
		return i.UploadTime != nil
	case FieldSize:
		return i.Size != nil
	case FieldContentType:
		return i.ContentType != nil
	case FieldWidth:
		return i.Width != nil
	case FieldHeight:
		return i.Height != nil
	case FieldCaption:
		return i.Caption != nil
	case FieldReviewDate:
		return i.ReviewDate != nil
	case FieldPhotographerName:
		return i.PhotographerName != nil
	case FieldPhotographerEmail:
		return i.PhotographerEmail != nil
	case FieldDescription:
		return i.Description != nil
	case FieldLocation:
		return i.Location != nil
	case FieldTags:
		return i.Tags != nil
	case FieldStatus:
		return i.Status != ""
	case FieldReason:
		return i.Reason != nil
	default:
		return false
	}
}

// metadataAliases maps lower-cased producer names onto metadata fields.
var metadataAliases = map[string]Field{
	"caption":           FieldCaption,
	"date":              FieldReviewDate,
	"reviewdate":        FieldReviewDate,
	"name":              FieldPhotographerName,
	"photographer":      FieldPhotographerName,
	"photographername":  FieldPhotographerName,
	"email":             FieldPhotographerEmail,
	"photographeremail": FieldPhotographerEmail,
	"description":       FieldDescription,
	"location":          FieldLocation,
	"tags":              FieldTags,
}

// MetadataField resolves a producer-supplied metadata name (e.g. "Caption",
// "Date", "name") to a record field.
func MetadataField(name string) (Field, bool) {
	f, ok := metadataAliases[strings.ToLower(strings.TrimSpace(name))]
	return f, ok
}
