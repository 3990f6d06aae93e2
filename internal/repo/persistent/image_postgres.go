package persistent

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/andreyxaxa/photo-pipeline/internal/entity"
	"github.com/andreyxaxa/photo-pipeline/pkg/postgres"
	"github.com/andreyxaxa/photo-pipeline/pkg/types/errs"
	"github.com/jackc/pgx/v5"
)

const (
	// Table
	imagesTable = "images"

	// Columns
	idColumn                = "id"
	uploadTimeColumn        = "upload_time"
	sizeColumn              = "size"
	contentTypeColumn       = "content_type"
	widthColumn             = "width"
	heightColumn            = "height"
	captionColumn           = "caption"
	reviewDateColumn        = "review_date"
	photographerNameColumn  = "photographer_name"
	photographerEmailColumn = "photographer_email"
	descriptionColumn       = "description"
	locationColumn          = "location"
	tagsColumn              = "tags"
	statusColumn            = "status"
	reasonColumn            = "reason"
	updatedAtColumn         = "updated_at"
)

var imageColumns = []string{
	idColumn,
	uploadTimeColumn,
	sizeColumn,
	contentTypeColumn,
	widthColumn,
	heightColumn,
	captionColumn,
	reviewDateColumn,
	photographerNameColumn,
	photographerEmailColumn,
	descriptionColumn,
	locationColumn,
	tagsColumn,
	statusColumn,
	reasonColumn,
}

var fieldColumns = map[entity.Field]string{
	entity.FieldUploadTime:        uploadTimeColumn,
	entity.FieldSize:              sizeColumn,
	entity.FieldContentType:       contentTypeColumn,
	entity.FieldWidth:             widthColumn,
	entity.FieldHeight:            heightColumn,
	entity.FieldCaption:           captionColumn,
	entity.FieldReviewDate:        reviewDateColumn,
	entity.FieldPhotographerName:  photographerNameColumn,
	entity.FieldPhotographerEmail: photographerEmailColumn,
	entity.FieldDescription:       descriptionColumn,
	entity.FieldLocation:          locationColumn,
	entity.FieldTags:              tagsColumn,
	entity.FieldStatus:            statusColumn,
	entity.FieldReason:            reasonColumn,
}

type ImageRecordRepo struct {
	*postgres.Postgres
}

func NewImageRecordRepo(pg *postgres.Postgres) *ImageRecordRepo {
	return &ImageRecordRepo{pg}
}

func (r *ImageRecordRepo) GetByID(ctx context.Context, id string) (*entity.Image, error) {
	sql, args, err := r.Builder.
		Select(imageColumns...).
		From(imagesTable).
		Where(squirrel.Eq{idColumn: id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("ImageRecordRepo - GetByID - r.Builder.ToSql: %w", err)
	}

	executor := r.GetExecutor(ctx)

	image, err := scanImage(executor.QueryRow(ctx, sql, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("ImageRecordRepo - GetByID: %w", errs.ErrRecordNotFound)
		}
		return nil, fmt.Errorf("ImageRecordRepo - GetByID - executor.QueryRow: %w", err)
	}

	return image, nil
}

func (r *ImageRecordRepo) Apply(
	ctx context.Context,
	id string,
	changes entity.Changes,
	createIfMissing bool,
) (before, after *entity.Image, err error) {
	err = r.WithinTransaction(ctx, func(ctx context.Context) error {
		executor := r.GetExecutor(ctx)

		// Lock the row so the captured old image matches what we overwrite.
		sql, args, err := r.Builder.
			Select(imageColumns...).
			From(imagesTable).
			Where(squirrel.Eq{idColumn: id}).
			Suffix("FOR UPDATE").
			ToSql()
		if err != nil {
			return fmt.Errorf("r.Builder.ToSql: %w", err)
		}

		before, err = scanImage(executor.QueryRow(ctx, sql, args...))
		if err != nil {
			if !errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("executor.QueryRow: %w", err)
			}
			before = nil
		}

		if before == nil && !createIfMissing {
			return errs.ErrRecordNotFound
		}

		if before == nil {
			sql, args, err = r.upsertQuery(id, changes)
		} else {
			sql, args, err = r.updateQuery(id, changes)
		}
		if err != nil {
			return err
		}

		after, err = scanImage(executor.QueryRow(ctx, sql, args...))
		if err != nil {
			return fmt.Errorf("executor.QueryRow: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("ImageRecordRepo - Apply: %w", err)
	}

	return before, after, nil
}

// upsertQuery inserts the record with only the given fields. A concurrent
// insert of the same id turns into an update of the same fields.
func (r *ImageRecordRepo) upsertQuery(id string, changes entity.Changes) (string, []any, error) {
	cols, vals, err := columnValues(changes)
	if err != nil {
		return "", nil, err
	}
	keep := ifUnsetColumns(changes)

	conflict := "ON CONFLICT (" + idColumn + ") DO UPDATE SET " + updatedAtColumn + " = now()"
	for _, col := range cols {
		if keep[col] {
			conflict += ", " + col + " = COALESCE(" + imagesTable + "." + col + ", EXCLUDED." + col + ")"
			continue
		}
		conflict += ", " + col + " = EXCLUDED." + col
	}

	sql, args, err := r.Builder.
		Insert(imagesTable).
		Columns(append([]string{idColumn}, cols...)...).
		Values(append([]any{id}, vals...)...).
		Suffix(conflict).
		Suffix(returning()).
		ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("upsertQuery - r.Builder.ToSql: %w", err)
	}

	return sql, args, nil
}

func (r *ImageRecordRepo) updateQuery(id string, changes entity.Changes) (string, []any, error) {
	cols, vals, err := columnValues(changes)
	if err != nil {
		return "", nil, err
	}

	keep := ifUnsetColumns(changes)

	q := r.Builder.
		Update(imagesTable).
		Set(updatedAtColumn, squirrel.Expr("now()"))
	for i, col := range cols {
		if keep[col] {
			q = q.Set(col, squirrel.Expr("COALESCE("+col+", ?)", vals[i]))
			continue
		}
		q = q.Set(col, vals[i])
	}

	sql, args, err := q.
		Where(squirrel.Eq{idColumn: id}).
		Suffix(returning()).
		ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("updateQuery - r.Builder.ToSql: %w", err)
	}

	return sql, args, nil
}

func returning() string {
	s := "RETURNING "
	for i, col := range imageColumns {
		if i > 0 {
			s += ", "
		}
		s += col
	}
	return s
}

// columnValues maps changes onto columns, keeping the first position and the
// last value of a repeated field.
// ifUnsetColumns marks the columns whose last change must not overwrite a
// stored value.
func ifUnsetColumns(changes entity.Changes) map[string]bool {
	keep := make(map[string]bool, len(changes))
	for _, ch := range changes {
		if col, ok := fieldColumns[ch.Field]; ok {
			keep[col] = ch.IfUnset
		}
	}
	return keep
}

func columnValues(changes entity.Changes) ([]string, []any, error) {
	if len(changes) == 0 {
		return nil, nil, fmt.Errorf("columnValues: no changes")
	}

	index := make(map[string]int, len(changes))
	cols := make([]string, 0, len(changes))
	vals := make([]any, 0, len(changes))

	for _, ch := range changes {
		col, ok := fieldColumns[ch.Field]
		if !ok {
			return nil, nil, fmt.Errorf("columnValues: unknown field %q", ch.Field)
		}

		v := ch.Value
		if st, ok := v.(entity.ReviewStatus); ok {
			v = string(st)
		}

		if i, ok := index[col]; ok {
			vals[i] = v
			continue
		}
		index[col] = len(cols)
		cols = append(cols, col)
		vals = append(vals, v)
	}

	return cols, vals, nil
}

func scanImage(row pgx.Row) (*entity.Image, error) {
	var (
		image  entity.Image
		status string
	)

	err := row.Scan(
		&image.ID,
		&image.UploadTime,
		&image.Size,
		&image.ContentType,
		&image.Width,
		&image.Height,
		&image.Caption,
		&image.ReviewDate,
		&image.PhotographerName,
		&image.PhotographerEmail,
		&image.Description,
		&image.Location,
		&image.Tags,
		&status,
		&image.Reason,
	)
	if err != nil {
		return nil, err
	}

	image.Status = entity.ReviewStatus(status)

	return &image, nil
}
