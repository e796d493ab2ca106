package db

import "encoding/json"

// Artwork 定义画廊中保存的一条生成结果
type Artwork struct {
	ID         string `gorm:"primaryKey"`
	GalleryKey string `gorm:"index:idx_artworks_gallery_seq"`
	// Seq 决定画廊内的排序，数值越大越新
	Seq       int64 `gorm:"index:idx_artworks_gallery_seq"`
	CreatedAt string
	Prompt    string
	Action    string // generate, edit, variation
	Size      string
	Model     string
	ImageB64  string
	Tags      string // JSON 数组，最多保存 20 个标签
}

// TagList 将标签列反序列化为字符串切片，损坏的数据按空列表处理。
func (a *Artwork) TagList() []string {
	if a.Tags == "" {
		return []string{}
	}
	var tags []string
	if err := json.Unmarshal([]byte(a.Tags), &tags); err != nil || tags == nil {
		return []string{}
	}
	return tags
}

// SetTags 序列化标签列表并写入标签列。
func (a *Artwork) SetTags(tags []string) {
	if len(tags) == 0 {
		a.Tags = "[]"
		return
	}
	buf, err := json.Marshal(tags)
	if err != nil {
		a.Tags = "[]"
		return
	}
	a.Tags = string(buf)
}
