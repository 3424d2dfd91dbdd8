package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"propvalue/internal/domain"
)

// maxComparables bounds one outward-code lookup.
const maxComparables = 500

func valF64(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

// valJSON marshals v for a JSON column; nil maps and pointers become NULL.
func valJSON(v any) (any, error) {
	switch t := v.(type) {
	case map[string]any:
		if t == nil {
			return nil, nil
		}
	case *domain.PricePrediction:
		if t == nil {
			return nil, nil
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func scanJSON(b []byte, dst any) error {
	if len(b) == 0 {
		return nil
	}
	return json.Unmarshal(b, dst)
}

type Repo struct{ db *sql.DB }

func New(db *sql.DB) *Repo { return &Repo{db: db} }

func (r *Repo) Ping(ctx context.Context) error { return r.db.PingContext(ctx) }

func (r *Repo) insert(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r *Repo) SaveProperty(ctx context.Context, p domain.Property) (int64, error) {
	var raw any
	if len(p.RawJSON) > 0 {
		raw = string(p.RawJSON)
	}
	return r.insert(ctx, insertPropertySQL,
		p.ImporterID,
		p.ExternalRef,
		p.BuildingName,
		p.Street,
		p.Locality,
		p.Postcode,
		p.Country,
		string(p.PropertyType),
		p.PropertySubType,
		p.SizeMinimum,
		p.SizeMaximum,
		p.PricePerAreaPA,
		p.PricePerAreaPCM,
		string(p.TransactionType),
		string(p.Status),
		p.EPC.Rating,
		p.EPC.Score,
		p.EPC.ValidUntil,
		p.CouncilTax.Band,
		p.CouncilTax.RateableValue,
		p.Planning.UseClass,
		p.Planning.ListedBuilding,
		p.Planning.Conservation,
		valF64(p.Latitude),
		valF64(p.Longitude),
		p.Geocoding.Source,
		p.Geocoding.Accuracy,
		p.AvailableFrom,
		raw,
	)
}

func (r *Repo) SaveDescription(ctx context.Context, d domain.Description) (int64, error) {
	return r.insert(ctx, insertDescriptionSQL, d.PropertyID, d.Summary, d.Body)
}

func (r *Repo) SaveSaleTerms(ctx context.Context, t domain.SaleTerms) (int64, error) {
	return r.insert(ctx, insertSaleTermsSQL,
		t.PropertyID, string(t.SaleType), t.Price, string(t.PriceFrequency), t.Qualifier, t.Tenure)
}

func (r *Repo) SaveDocument(ctx context.Context, d domain.Document) (int64, error) {
	return r.insert(ctx, insertDocumentSQL, d.PropertyID, d.Kind, d.URL, d.Placeholder)
}

func (r *Repo) SaveImage(ctx context.Context, i domain.Image) (int64, error) {
	return r.insert(ctx, insertImageSQL, i.PropertyID, i.Position, i.URL, i.Caption, i.Placeholder)
}

func (r *Repo) SaveLocation(ctx context.Context, l domain.Location) (int64, error) {
	return r.insert(ctx, insertLocationSQL,
		l.PropertyID, valF64(l.Latitude), valF64(l.Longitude), l.Postcode, l.Outcode, l.Source)
}

func (r *Repo) FindComparables(ctx context.Context, outcode string) ([]domain.Property, error) {
	rows, err := r.db.QueryContext(ctx, findComparablesSQL, outcode, maxComparables)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.Property{}
	for rows.Next() {
		var (
			p        domain.Property
			ptype    string
			trans    string
			status   string
			lat, lon sql.NullFloat64
		)
		if err := rows.Scan(
			&p.ID, &p.ImporterID, &p.ExternalRef, &p.BuildingName, &p.Street, &p.Locality, &p.Postcode, &p.Country,
			&ptype, &p.PropertySubType, &p.SizeMinimum, &p.SizeMaximum,
			&p.PricePerAreaPA, &p.PricePerAreaPCM, &trans, &status,
			&p.EPC.Rating, &p.EPC.Score, &p.EPC.ValidUntil, &p.CouncilTax.Band, &p.CouncilTax.RateableValue,
			&p.Planning.UseClass, &p.Planning.ListedBuilding, &p.Planning.Conservation,
			&lat, &lon, &p.Geocoding.Source, &p.Geocoding.Accuracy, &p.AvailableFrom,
		); err != nil {
			return nil, err
		}
		p.PropertyType = domain.PropertyType(ptype)
		p.TransactionType = domain.TransactionType(trans)
		p.Status = domain.SaleStatus(status)
		if lat.Valid && lon.Valid {
			la, lo := lat.Float64, lon.Float64
			p.Latitude, p.Longitude = &la, &lo
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// SaveReport writes the whole report in one statement; there is no update path.
func (r *Repo) SaveReport(ctx context.Context, rep domain.Report) error {
	cols := []any{
		rep.Area, rep.PropertyDetails, rep.EPCData, rep.AIAnalysis, rep.PsychographicsAnalysis,
		rep.PredictedPrice, rep.CrimeData, rep.Article4Data, rep.BRMALHAData, rep.DemographicsData,
	}
	js := make([]any, len(cols))
	for i, c := range cols {
		v, err := valJSON(c)
		if err != nil {
			return fmt.Errorf("encode report column %d: %w", i, err)
		}
		js[i] = v
	}
	_, err := r.db.ExecContext(ctx, insertReportSQL,
		rep.ID, rep.OwnerID, rep.Postcode, string(rep.PropertyType), js[0], rep.ComparableCount,
		js[1], js[2], js[3], js[4], js[5], js[6], js[7], js[8], js[9],
		rep.CreatedAt.UTC(),
	)
	return err
}

func (r *Repo) GetReport(ctx context.Context, id string) (domain.Report, error) {
	row := r.db.QueryRowContext(ctx, getReportSQL, id)

	var (
		rep                                 domain.Report
		ptype                               string
		area, details, epc, ai, psycho      []byte
		price, crime, art4, brma, demograph []byte
	)
	if err := row.Scan(
		&rep.ID, &rep.OwnerID, &rep.Postcode, &ptype, &area, &rep.ComparableCount,
		&details, &epc, &ai, &psycho, &price,
		&crime, &art4, &brma, &demograph, &rep.CreatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Report{}, domain.ErrNotFound
		}
		return domain.Report{}, err
	}
	rep.PropertyType = domain.PropertyType(ptype)

	for _, c := range []struct {
		b   []byte
		dst any
	}{
		{area, &rep.Area},
		{details, &rep.PropertyDetails},
		{epc, &rep.EPCData},
		{ai, &rep.AIAnalysis},
		{psycho, &rep.PsychographicsAnalysis},
		{price, &rep.PredictedPrice},
		{crime, &rep.CrimeData},
		{art4, &rep.Article4Data},
		{brma, &rep.BRMALHAData},
		{demograph, &rep.DemographicsData},
	} {
		if err := scanJSON(c.b, c.dst); err != nil {
			return domain.Report{}, fmt.Errorf("decode report %s: %w", id, err)
		}
	}
	return rep, nil
}
