package cache

// Entry is one cached compilation.
type Entry struct {
	ID       int64  `json:"id" gorm:"primaryKey"`
	CacheKey string `json:"cache_key" gorm:"index:idx_cache_key,unique"`
	Name     string `json:"name"`
	// JSON encoded instruction list
	Code string `json:"code"`
	// unix seconds
	CreatedAt       int64
	LastAccess      int64 `gorm:"index:idx_last_access"`
	ExpiredDuration int64
}

func (Entry) TableName() string {
	return "compile_entry"
}
