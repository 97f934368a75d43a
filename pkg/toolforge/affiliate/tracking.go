package affiliate

import (
	"errors"
	"log"

	"github.com/toolforge/toolforge/pkg/toolforge/models"
	"gorm.io/gorm"
)

// ClickRecord carries the request context recorded alongside a click
type ClickRecord struct {
	SessionID string
	Country   string
	Referrer  string
	Metadata  map[string]string
}

// TrackClick appends an immutable click log row and bumps the tool's click
// counter. The counter update is an atomic database-side increment, fired
// off a goroutine so the redirect never waits on it.
func (r *Resolver) TrackClick(toolID uint, program models.Program, trackingID string, rec ClickRecord) error {
	entry := models.ClickLog{
		ToolID:     toolID,
		Program:    program,
		TrackingID: trackingID,
		SessionID:  rec.SessionID,
		Country:    rec.Country,
		Referrer:   rec.Referrer,
		Metadata:   rec.Metadata,
	}
	if err := r.db.Create(&entry).Error; err != nil {
		return err
	}

	go func() {
		r.db.Model(&models.Tool{}).Where("id = ?", toolID).
			Update("click_count", gorm.Expr("click_count + 1"))
	}()

	return nil
}

// RecordConversion records realized revenue against an earlier click. A
// tracking ID with no matching click log is logged and dropped: no retry, no
// dead-letter. A zero commission rate yields a zero commission, not an error.
func (r *Resolver) RecordConversion(trackingID string, revenue, commissionRate float64) error {
	var click models.ClickLog
	if err := r.db.Where("tracking_id = ?", trackingID).First(&click).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("affiliate: conversion for unknown tracking ID %q dropped", trackingID)
			return nil
		}
		return err
	}

	conversion := models.Conversion{
		TrackingID:       trackingID,
		ToolID:           click.ToolID,
		Program:          click.Program,
		Revenue:          revenue,
		CommissionRate:   commissionRate,
		CommissionAmount: revenue * commissionRate,
	}
	return r.db.Create(&conversion).Error
}
