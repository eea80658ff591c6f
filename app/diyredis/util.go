package diyredis

import (
	resp3 "github.com/sparsebitd/sparsebitd/app/diyredis/resp3"
)

func makeRESPArr(arr []string) []byte {
	encoder := resp3.Encoder{}
	encoder.WriteArrHeader(len(arr))
	for _, val := range arr {
		encoder.WriteBulkStr(val)
	}
	return encoder.Buf
}
