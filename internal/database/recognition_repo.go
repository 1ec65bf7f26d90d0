package database

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/MiguelCortes1231/ocrFront/internal/models"
)

var ErrRecognitionNotFound = errors.New("recognition not found")

// CreateRecognition persists a completed recognition result
func (db *DB) CreateRecognition(ctx context.Context, req *models.CreateRecognitionRequest) (*models.Recognition, error) {
	var fieldsJSON []byte
	if req.Fields != nil {
		var err error
		fieldsJSON, err = json.Marshal(req.Fields)
		if err != nil {
			return nil, err
		}
	}

	rec := &models.Recognition{}
	var rawFields []byte

	err := db.Pool.QueryRow(ctx, `
		INSERT INTO recognitions (user_id, side, status, fields, ocr_text, s3_bucket, s3_key, content_type)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, user_id, side, status, fields, ocr_text, s3_bucket, s3_key, content_type, created_at
	`, req.UserID, req.Side, req.Status, fieldsJSON, req.OCRText, req.S3Bucket, req.S3Key, req.ContentType).Scan(
		&rec.ID, &rec.UserID, &rec.Side, &rec.Status, &rawFields,
		&rec.OCRText, &rec.S3Bucket, &rec.S3Key, &rec.ContentType, &rec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := unmarshalFields(rawFields, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// GetRecognitionByID retrieves a recognition by ID
func (db *DB) GetRecognitionByID(ctx context.Context, id int) (*models.Recognition, error) {
	rec := &models.Recognition{}
	var rawFields []byte

	err := db.Pool.QueryRow(ctx, `
		SELECT id, user_id, side, status, fields, ocr_text, s3_bucket, s3_key, content_type, created_at
		FROM recognitions
		WHERE id = $1
	`, id).Scan(
		&rec.ID, &rec.UserID, &rec.Side, &rec.Status, &rawFields,
		&rec.OCRText, &rec.S3Bucket, &rec.S3Key, &rec.ContentType, &rec.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRecognitionNotFound
		}
		return nil, err
	}

	if err := unmarshalFields(rawFields, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// ListRecognitions returns a paginated list of a user's recognitions
func (db *DB) ListRecognitions(ctx context.Context, params *models.RecognitionListParams) ([]models.Recognition, int, error) {
	query := `
		SELECT id, user_id, side, status, fields, ocr_text, s3_bucket, s3_key, content_type, created_at
		FROM recognitions
		WHERE user_id = $1
	`
	countQuery := `SELECT COUNT(*) FROM recognitions WHERE user_id = $1`
	args := []interface{}{params.UserID}

	if params.Side != nil {
		query += ` AND side = $2`
		countQuery += ` AND side = $2`
		args = append(args, *params.Side)
	}

	var total int
	if err := db.Pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += ` ORDER BY created_at DESC`
	if params.Side != nil {
		query += ` LIMIT $3 OFFSET $4`
	} else {
		query += ` LIMIT $2 OFFSET $3`
	}
	args = append(args, params.Limit, params.Offset)

	rows, err := db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var recs []models.Recognition
	for rows.Next() {
		rec := models.Recognition{}
		var rawFields []byte
		err := rows.Scan(
			&rec.ID, &rec.UserID, &rec.Side, &rec.Status, &rawFields,
			&rec.OCRText, &rec.S3Bucket, &rec.S3Key, &rec.ContentType, &rec.CreatedAt,
		)
		if err != nil {
			return nil, 0, err
		}
		if err := unmarshalFields(rawFields, &rec); err != nil {
			return nil, 0, err
		}
		recs = append(recs, rec)
	}

	if recs == nil {
		recs = []models.Recognition{}
	}

	return recs, total, nil
}

// DeleteRecognition deletes a recognition record
func (db *DB) DeleteRecognition(ctx context.Context, id int) error {
	tag, err := db.Pool.Exec(ctx, `DELETE FROM recognitions WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrRecognitionNotFound
	}
	return nil
}

func unmarshalFields(raw []byte, rec *models.Recognition) error {
	if len(raw) == 0 {
		return nil
	}
	fields := &models.RecognitionFields{}
	if err := json.Unmarshal(raw, fields); err != nil {
		return err
	}
	rec.Fields = fields
	return nil
}
