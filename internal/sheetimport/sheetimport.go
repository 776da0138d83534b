// Package sheetimport loads a CSV export of the legacy registration sheet.
//
// Columns are located by header name, case-insensitively, so exports with
// reordered or extra columns still load. Timestamps are kept verbatim.
package sheetimport

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/bis-events/gatepass/internal/lock"
	"github.com/bis-events/gatepass/internal/models"
	"github.com/bis-events/gatepass/internal/records"
)

// Sheet header names.
const (
	HeaderTimestamp     = "Timestamp"
	HeaderName          = "Name"
	HeaderEmail         = "Email"
	HeaderPhone         = "Phone"
	HeaderTransactionID = "Transaction ID"
	HeaderProofURL      = "Payment Proof URL"
	HeaderStatus        = "Status"
	HeaderTicketID      = "Ticket ID"
	HeaderTicketToken   = "Ticket Token"
	HeaderTicketLink    = "Ticket Link"
	HeaderTicketQRURL   = "Ticket QR File URL"
	HeaderTicketSent    = "Ticket Sent"
	HeaderCheckedIn     = "Checked In"
	HeaderDay1          = "Day 1 Attendance"
	HeaderDay2          = "Day 2 Attendance"
	HeaderDay3          = "Day 3 Attendance"
)

// ErrNoHeader is returned for an empty file.
var ErrNoHeader = errors.New("sheet has no header row")

type columns map[string]int

func (c columns) get(row []string, header string) string {
	i, ok := c[strings.ToLower(header)]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// Parse reads every data row. Rows without a name and email are skipped.
func Parse(r io.Reader) ([]*models.Registration, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	head, err := cr.Read()
	if err == io.EOF {
		return nil, ErrNoHeader
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols := columns{}
	for i, h := range head {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if _, dup := cols[key]; !dup {
			cols[key] = i
		}
	}
	if _, ok := cols[strings.ToLower(HeaderName)]; !ok {
		return nil, fmt.Errorf("missing %q column", HeaderName)
	}

	var out []*models.Registration
	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		reg := rowToRegistration(cols, row)
		if reg.Name == "" && reg.Email == "" {
			continue
		}
		out = append(out, reg)
	}
	return out, nil
}

func rowToRegistration(cols columns, row []string) *models.Registration {
	status := models.ParseStatus(cols.get(row, HeaderStatus))
	if status == "" {
		status = models.StatusPending
	}
	reg := &models.Registration{
		CreatedAt:     cols.get(row, HeaderTimestamp),
		Name:          cols.get(row, HeaderName),
		Email:         cols.get(row, HeaderEmail),
		Phone:         cols.get(row, HeaderPhone),
		TransactionID: cols.get(row, HeaderTransactionID),
		ProofURL:      cols.get(row, HeaderProofURL),
		Status:        status,
		TicketID:      cols.get(row, HeaderTicketID),
		TicketToken:   cols.get(row, HeaderTicketToken),
		TicketLink:    cols.get(row, HeaderTicketLink),
		TicketQRURL:   cols.get(row, HeaderTicketQRURL),
		TicketSent:    yes(cols.get(row, HeaderTicketSent)),
		CheckedIn:     yes(cols.get(row, HeaderCheckedIn)),
	}
	reg.Day1Attendance = models.NormalizeStamp(cols.get(row, HeaderDay1))
	reg.Day2Attendance = models.NormalizeStamp(cols.get(row, HeaderDay2))
	reg.Day3Attendance = models.NormalizeStamp(cols.get(row, HeaderDay3))
	return reg
}

func yes(v string) bool {
	switch strings.ToLower(v) {
	case "yes", "y", "true", "1":
		return true
	}
	return false
}

// Summary reports an import run.
type Summary struct {
	Imported int
	Skipped  int
}

// Import appends regs under the write lock. A row whose ticket ID already
// exists in the store is skipped so an import can be re-run.
func Import(ctx context.Context, store records.Store, locker lock.Locker, regs []*models.Registration, logger *zap.Logger) (Summary, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var sum Summary
	err := locker.WithLock(ctx, func(ctx context.Context) error {
		for _, reg := range regs {
			if reg.TicketID != "" {
				_, err := store.FindByField(ctx, records.FieldTicketID, reg.TicketID)
				if err == nil {
					sum.Skipped++
					logger.Debug("ticket already imported", zap.String("ticket_id", reg.TicketID))
					continue
				}
				if !errors.Is(err, records.ErrNotFound) {
					return err
				}
			}
			if err := store.Append(ctx, reg); err != nil {
				return fmt.Errorf("append %q: %w", reg.Email, err)
			}
			sum.Imported++
		}
		return nil
	})
	return sum, err
}
