package service

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/artlog/internal/catalog"
	"github.com/artlog/internal/db"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrArtworkNotFound = errors.New("artwork not found")
	ErrImageMissing    = errors.New("artwork image is required")
	ErrImportInvalid   = errors.New("import payload is not a json array")
)

const (
	ActionGenerate  = "generate"
	ActionEdit      = "edit"
	ActionVariation = "variation"
)

const (
	// GalleryLimit 是单个画廊保存的条目上限，超出时最旧的条目被淘汰
	GalleryLimit = 100
	// MaxTagCount 限制单个作品的标签数量
	MaxTagCount = 20
)

// GalleryService handles per-visitor artwork bookkeeping.
type GalleryService struct {
	db *gorm.DB
}

// ArtworkInput represents fields accepted when saving a new artwork.
type ArtworkInput struct {
	Prompt string
	Action string
	Size   string
	Model  string
	B64    string
	Tags   []string
}

// ArtworkRecord 是画廊导入与导出共用的序列化格式。
type ArtworkRecord struct {
	ID        string   `json:"id"`
	CreatedAt string   `json:"createdAt"`
	Prompt    string   `json:"prompt"`
	Action    string   `json:"action"`
	Size      string   `json:"size"`
	Model     string   `json:"model"`
	B64       string   `json:"b64"`
	Tags      []string `json:"tags"`
}

// NewGalleryService creates a GalleryService instance.
func NewGalleryService(gdb *gorm.DB) *GalleryService {
	return &GalleryService{db: gdb}
}

// List returns the gallery contents, newest first.
func (s *GalleryService) List(galleryKey string) ([]db.Artwork, error) {
	var items []db.Artwork
	if err := s.db.Where("gallery_key = ?", galleryKey).
		Order("seq desc").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// Search filters the gallery by a case-insensitive substring over
// prompt, model, action, size and tags. An empty query returns everything.
func (s *GalleryService) Search(galleryKey, query string) ([]db.Artwork, error) {
	items, err := s.List(galleryKey)
	if err != nil {
		return nil, err
	}

	query = strings.TrimSpace(query)
	if query == "" {
		return items, nil
	}

	matched := make([]db.Artwork, 0, len(items))
	for _, item := range items {
		if artworkMatches(&item, query) {
			matched = append(matched, item)
		}
	}
	return matched, nil
}

func artworkMatches(item *db.Artwork, query string) bool {
	haystack := strings.Join([]string{
		item.Prompt,
		item.Model,
		item.Action,
		item.Size,
		strings.Join(item.TagList(), " "),
	}, " ")
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(query))
}

// Get fetches a single artwork within the gallery.
func (s *GalleryService) Get(galleryKey, id string) (*db.Artwork, error) {
	var item db.Artwork
	err := s.db.Where("gallery_key = ? AND id = ?", galleryKey, id).First(&item).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrArtworkNotFound
		}
		return nil, err
	}
	return &item, nil
}

// Add prepends a new artwork and evicts the oldest entries beyond the cap.
func (s *GalleryService) Add(galleryKey string, input ArtworkInput) (*db.Artwork, error) {
	if strings.TrimSpace(input.B64) == "" {
		return nil, ErrImageMissing
	}

	seq, err := s.nextSeq(galleryKey)
	if err != nil {
		return nil, err
	}

	item := db.Artwork{
		ID:         uuid.New().String(),
		GalleryKey: galleryKey,
		Seq:        seq,
		CreatedAt:  time.Now().Format(time.RFC3339),
		Prompt:     strings.TrimSpace(input.Prompt),
		Action:     normalizeAction(input.Action),
		Size:       strings.TrimSpace(input.Size),
		Model:      strings.TrimSpace(input.Model),
		ImageB64:   strings.TrimSpace(input.B64),
	}
	if item.Size == "" {
		item.Size = catalog.DefaultSize
	}
	if item.Model == "" {
		item.Model = catalog.DefaultModel
	}
	item.SetTags(normalizeTags(input.Tags))

	if err := s.db.Create(&item).Error; err != nil {
		return nil, err
	}
	if err := s.evictOverflow(galleryKey); err != nil {
		return nil, err
	}
	return &item, nil
}

// Delete removes an artwork by id.
func (s *GalleryService) Delete(galleryKey, id string) error {
	result := s.db.Where("gallery_key = ? AND id = ?", galleryKey, id).Delete(&db.Artwork{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrArtworkNotFound
	}
	return nil
}

// Clear removes every artwork in the gallery.
func (s *GalleryService) Clear(galleryKey string) error {
	return s.db.Where("gallery_key = ?", galleryKey).Delete(&db.Artwork{}).Error
}

// Export serializes the gallery, newest first, in the import/export format.
func (s *GalleryService) Export(galleryKey string) ([]ArtworkRecord, error) {
	items, err := s.List(galleryKey)
	if err != nil {
		return nil, err
	}

	records := make([]ArtworkRecord, 0, len(items))
	for _, item := range items {
		records = append(records, ArtworkRecord{
			ID:        item.ID,
			CreatedAt: item.CreatedAt,
			Prompt:    item.Prompt,
			Action:    item.Action,
			Size:      item.Size,
			Model:     item.Model,
			B64:       item.ImageB64,
			Tags:      item.TagList(),
		})
	}
	return records, nil
}

// Import merges an exported JSON array into the gallery. Entries without an
// image payload are discarded, missing fields fall back to defaults, ids that
// already exist are skipped, and new entries land before the existing ones.
// Returns the number of imported entries.
func (s *GalleryService) Import(galleryKey string, payload []byte) (int, error) {
	var entries []json.RawMessage
	if err := json.Unmarshal(payload, &entries); err != nil {
		return 0, ErrImportInvalid
	}

	existing, err := s.List(galleryKey)
	if err != nil {
		return 0, err
	}
	seen := make(map[string]bool, len(existing))
	for _, item := range existing {
		seen[item.ID] = true
	}

	records := make([]ArtworkRecord, 0, len(entries))
	for _, raw := range entries {
		record, ok := coerceRecord(raw)
		if !ok {
			continue
		}
		if seen[record.ID] {
			continue
		}
		seen[record.ID] = true
		records = append(records, record)
	}
	if len(records) == 0 {
		return 0, nil
	}

	base, err := s.nextSeq(galleryKey)
	if err != nil {
		return 0, err
	}

	// 导入数组的第一项最新，因此倒序分配递增的 seq
	rows := make([]db.Artwork, 0, len(records))
	for i := len(records) - 1; i >= 0; i-- {
		record := records[i]
		row := db.Artwork{
			ID:         record.ID,
			GalleryKey: galleryKey,
			Seq:        base,
			CreatedAt:  record.CreatedAt,
			Prompt:     record.Prompt,
			Action:     record.Action,
			Size:       record.Size,
			Model:      record.Model,
			ImageB64:   record.B64,
		}
		row.SetTags(record.Tags)
		rows = append(rows, row)
		base++
	}

	if err := s.db.Create(&rows).Error; err != nil {
		return 0, err
	}
	if err := s.evictOverflow(galleryKey); err != nil {
		return 0, err
	}
	return len(records), nil
}

// coerceRecord 宽容地解析单个导入条目，字段缺失时回退到默认值。
// 没有图像数据的条目被丢弃。
func coerceRecord(raw json.RawMessage) (ArtworkRecord, bool) {
	var entry map[string]interface{}
	if err := json.Unmarshal(raw, &entry); err != nil {
		return ArtworkRecord{}, false
	}

	b64 := stringField(entry, "b64")
	if b64 == "" {
		b64 = stringField(entry, "encodedImage")
	}
	if b64 == "" {
		return ArtworkRecord{}, false
	}

	record := ArtworkRecord{
		ID:        stringField(entry, "id"),
		CreatedAt: stringField(entry, "createdAt"),
		Prompt:    stringField(entry, "prompt"),
		Action:    normalizeAction(stringField(entry, "action")),
		Size:      stringField(entry, "size"),
		Model:     stringField(entry, "model"),
		B64:       b64,
		Tags:      normalizeTags(stringSliceField(entry, "tags")),
	}
	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	if record.CreatedAt == "" {
		record.CreatedAt = time.Now().Format(time.RFC3339)
	}
	if record.Size == "" {
		record.Size = catalog.DefaultSize
	}
	if record.Model == "" {
		record.Model = catalog.DefaultModel
	}
	return record, true
}

func stringField(entry map[string]interface{}, key string) string {
	if value, ok := entry[key].(string); ok {
		return strings.TrimSpace(value)
	}
	return ""
}

func stringSliceField(entry map[string]interface{}, key string) []string {
	raw, ok := entry[key].([]interface{})
	if !ok {
		return []string{}
	}
	values := make([]string, 0, len(raw))
	for _, item := range raw {
		if value, ok := item.(string); ok {
			values = append(values, value)
		}
	}
	return values
}

func normalizeAction(action string) string {
	switch strings.ToLower(strings.TrimSpace(action)) {
	case ActionEdit:
		return ActionEdit
	case ActionVariation:
		return ActionVariation
	default:
		return ActionGenerate
	}
}

func normalizeTags(tags []string) []string {
	cleaned := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		cleaned = append(cleaned, tag)
		if len(cleaned) == MaxTagCount {
			break
		}
	}
	return cleaned
}

func (s *GalleryService) nextSeq(galleryKey string) (int64, error) {
	var maxSeq int64
	if err := s.db.Model(&db.Artwork{}).
		Where("gallery_key = ?", galleryKey).
		Select("COALESCE(MAX(seq), 0)").
		Scan(&maxSeq).Error; err != nil {
		return 0, err
	}
	return maxSeq + 1, nil
}

// evictOverflow 删除超出上限的最旧条目。
func (s *GalleryService) evictOverflow(galleryKey string) error {
	var count int64
	if err := s.db.Model(&db.Artwork{}).
		Where("gallery_key = ?", galleryKey).
		Count(&count).Error; err != nil {
		return err
	}
	if count <= GalleryLimit {
		return nil
	}

	// 第 GalleryLimit 新的 seq 是保留边界
	var boundary int64
	if err := s.db.Model(&db.Artwork{}).
		Where("gallery_key = ?", galleryKey).
		Order("seq desc").
		Limit(1).
		Offset(GalleryLimit - 1).
		Select("seq").
		Scan(&boundary).Error; err != nil {
		return err
	}

	return s.db.Where("gallery_key = ? AND seq < ?", galleryKey, boundary).Delete(&db.Artwork{}).Error
}
