package handler

import (
	"strconv"
	"strings"
)

// Location はリソースの URI パスを組み立てます。id を省略した場合はコレクションのパスです。
func Location(root string, id ...int64) string {
	path := "/" + strings.Trim(root, "/")
	for _, v := range id {
		path += "/" + strconv.FormatInt(v, 10)
	}
	return path
}
