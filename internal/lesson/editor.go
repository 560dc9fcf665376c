package lesson

import (
	"context"

	"github.com/pot-code/samba-client/internal/infrastructure/validate"
)

// EditForm partial update, nil fields are left as they are
type EditForm struct {
	Title         *string `json:"title" validate:"omitempty,min=1,max=128"`
	Subtitle      *string `json:"subtitle" validate:"omitempty,max=128"`
	Description   *string `json:"description" validate:"omitempty,max=2048"`
	VideoPath     *string `json:"videoPath" validate:"omitempty,max=512"`
	ScheduledTime *string `json:"time" validate:"omitempty,min=1,max=64"`
}

// Fields document fields set by the form
func (ef *EditForm) Fields() Fields {
	fields := Fields{}
	set := func(name string, v *string) {
		if v != nil {
			fields[name] = *v
		}
	}
	set(FieldTitle, ef.Title)
	set(FieldSubtitle, ef.Subtitle)
	set(FieldDescription, ef.Description)
	set(FieldVideoPath, ef.VideoPath)
	set(FieldTime, ef.ScheduledTime)
	return fields
}

// CatalogEditor Editor that writes a prepared form to the catalog. An empty
// form counts as cancelled.
type CatalogEditor struct {
	Catalog   CatalogSource
	Validator validate.Validator
	Media     MediaStore
	Form      *EditForm
}

var _ Editor = &CatalogEditor{}

// NewCatalogEditor .
func NewCatalogEditor(Catalog CatalogSource, Validator validate.Validator, Media MediaStore, Form *EditForm) *CatalogEditor {
	return &CatalogEditor{Catalog, Validator, Media, Form}
}

func (ce *CatalogEditor) Edit(ctx context.Context, item Item, category Category) (EditResult, error) {
	if errs := ce.Validator.Struct(ce.Form); errs != nil {
		return EditResult{}, &validate.ValidationError{Fields: errs}
	}
	if ce.Form.VideoPath != nil {
		if err := checkMediaPath(ce.Media, *ce.Form.VideoPath); err != nil {
			return EditResult{}, err
		}
	}
	fields := ce.Form.Fields()
	if len(fields) == 0 {
		return EditResult{}, nil
	}
	if err := ce.Catalog.Update(ctx, item.ID, fields); err != nil {
		return EditResult{}, err
	}
	return EditResult{Committed: true, Fields: fields}, nil
}
