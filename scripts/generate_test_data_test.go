package main

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image/png"
	"testing"
	"time"

	"github.com/artlog/internal/db"
	"github.com/artlog/internal/service"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestBuildDemoRecords(t *testing.T) {
	records, err := buildDemoRecords(8)
	if err != nil {
		t.Fatalf("failed to build demo records: %v", err)
	}
	if len(records) != 8 {
		t.Fatalf("expected 8 records, got %d", len(records))
	}

	seen := make(map[string]bool)
	for i, record := range records {
		if record.ID == "" || seen[record.ID] {
			t.Fatalf("record %d has duplicate or empty id", i)
		}
		seen[record.ID] = true

		raw, err := base64.StdEncoding.DecodeString(record.B64)
		if err != nil {
			t.Fatalf("record %d is not valid base64: %v", i, err)
		}
		if _, err := png.Decode(bytes.NewReader(raw)); err != nil {
			t.Fatalf("record %d is not a decodable PNG: %v", i, err)
		}
		if _, err := time.Parse(time.RFC3339, record.CreatedAt); err != nil {
			t.Fatalf("record %d has invalid createdAt: %v", i, err)
		}
		if record.Tags == nil {
			t.Fatalf("record %d has nil tags, expected empty slice", i)
		}
	}
}

func TestDemoRecordsAreImportable(t *testing.T) {
	dsn := fmt.Sprintf("file:demo-%d?mode=memory&cache=shared", time.Now().UnixNano())
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	if err := gdb.AutoMigrate(&db.Artwork{}); err != nil {
		t.Fatalf("failed to migrate test db: %v", err)
	}
	t.Cleanup(func() {
		sqlDB, err := gdb.DB()
		if err == nil {
			sqlDB.Close()
		}
	})

	records, err := buildDemoRecords(8)
	if err != nil {
		t.Fatalf("failed to build demo records: %v", err)
	}
	payload, err := json.Marshal(records)
	if err != nil {
		t.Fatalf("failed to marshal demo records: %v", err)
	}

	svc := service.NewGalleryService(gdb)
	imported, err := svc.Import("demo-gallery", payload)
	if err != nil {
		t.Fatalf("failed to import demo records: %v", err)
	}
	if imported != len(records) {
		t.Fatalf("expected %d imported records, got %d", len(records), imported)
	}

	items, err := svc.List("demo-gallery")
	if err != nil {
		t.Fatalf("failed to list imported gallery: %v", err)
	}
	if len(items) != len(records) {
		t.Fatalf("expected %d gallery items, got %d", len(records), len(items))
	}
	if items[0].ID != records[0].ID {
		t.Fatalf("expected import to preserve ordering, got %s first", items[0].ID)
	}
}
