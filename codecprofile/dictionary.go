package codecprofile

import (
	"strconv"
	"strings"
)

type DictionaryItem struct {
	Key   string
	Value string
}

// DictionaryItems is an ordered set of encoder options; it is what gets
// passed to the encoder when it is opened.
type DictionaryItems []DictionaryItem

func (d DictionaryItems) Get(key string) (string, bool) {
	for _, item := range d {
		if item.Key == key {
			return item.Value, true
		}
	}
	return "", false
}

// Set sets the value, replacing the previous one if any.
func (d *DictionaryItems) Set(key, value string) {
	for idx := range *d {
		if (*d)[idx].Key == key {
			(*d)[idx].Value = value
			return
		}
	}
	*d = append(*d, DictionaryItem{Key: key, Value: value})
}

// SetDontOverwrite sets the value only if the key is not set yet.
func (d *DictionaryItems) SetDontOverwrite(key, value string) {
	if _, ok := d.Get(key); ok {
		return
	}
	*d = append(*d, DictionaryItem{Key: key, Value: value})
}

func (d *DictionaryItems) SetInt(key string, value int64) {
	d.Set(key, strconv.FormatInt(value, 10))
}

func (d *DictionaryItems) SetIntDontOverwrite(key string, value int64) {
	d.SetDontOverwrite(key, strconv.FormatInt(value, 10))
}

func (d DictionaryItems) String() string {
	var result strings.Builder
	for idx, item := range d {
		if idx > 0 {
			result.WriteString(":")
		}
		result.WriteString(item.Key)
		result.WriteString("=")
		result.WriteString(item.Value)
	}
	return result.String()
}
