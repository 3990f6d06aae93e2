package entity

import "time"

// Image is the per-photo record. Optional attributes stay nil until a
// message sets them.
type Image struct {
	ID string `json:"id"`

	UploadTime  *time.Time `json:"uploadTime,omitempty"`
	Size        *int64     `json:"size,omitempty"`
	ContentType *string    `json:"contentType,omitempty"`
	Width       *int       `json:"width,omitempty"`
	Height      *int       `json:"height,omitempty"`

	Caption           *string `json:"caption,omitempty"`
	ReviewDate        *string `json:"reviewDate,omitempty"`
	PhotographerName  *string `json:"photographerName,omitempty"`
	PhotographerEmail *string `json:"photographerEmail,omitempty"`
	Description       *string `json:"description,omitempty"`
	Location          *string `json:"location,omitempty"`
	Tags              *string `json:"tags,omitempty"`

	Status ReviewStatus `json:"status,omitempty"`
	Reason *string      `json:"reason,omitempty"`
}

// Clone returns a deep copy.
func (i *Image) Clone() *Image {
	if i == nil {
		return nil
	}

	c := *i
	c.UploadTime = clonePtr(i.UploadTime)
	c.Size = clonePtr(i.Size)
	c.ContentType = clonePtr(i.ContentType)
	c.Width = clonePtr(i.Width)
	c.Height = clonePtr(i.Height)
	c.Caption = clonePtr(i.Caption)
	c.ReviewDate = clonePtr(i.ReviewDate)
	c.PhotographerName = clonePtr(i.PhotographerName)
	c.PhotographerEmail = clonePtr(i.PhotographerEmail)
	c.Description = clonePtr(i.Description)
	c.Location = clonePtr(i.Location)
	c.Tags = clonePtr(i.Tags)
	c.Reason = clonePtr(i.Reason)

	return &c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

func (i *Image) CaptionOrEmpty() string    { return deref(i.Caption) }
func (i *Image) ReasonOrEmpty() string     { return deref(i.Reason) }
func (i *Image) ReviewDateOrEmpty() string { return deref(i.ReviewDate) }
func (i *Image) NameOrEmpty() string       { return deref(i.PhotographerName) }
func (i *Image) EmailOrEmpty() string      { return deref(i.PhotographerEmail) }
