package catalog

import (
	"sort"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// sortVolumes 按名称做数字感知的排序，保证 "Volume 2" 排在 "Volume 10"
// 之前。Collator 不支持并发复用，因此每次排序新建一个。
func sortVolumes(entries []VolumeEntry) {
	c := collate.New(language.Und, collate.Numeric)
	sort.Slice(entries, func(i, j int) bool {
		return c.CompareString(entries[i].Name, entries[j].Name) < 0
	})
}
