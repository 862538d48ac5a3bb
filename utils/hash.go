package utils

import (
	"hash"
	"hash/fnv"

	"github.com/davecgh/go-spew/spew"
)

type dentryHashKey struct {
	Ino  int64
	Frag uint32
	Name string
}

// HashDentry places a dentry on the cluster hash ring. The value depends only
// on its arguments, so every node computes the same placement.
func HashDentry(ino int64, frag uint32, name string) uint32 {
	hasher := fnv.New32a()
	DeepHashObject(hasher, dentryHashKey{Ino: ino, Frag: frag, Name: name})
	return hasher.Sum32()
}

// DeepHashObject writes specified object to hash using the spew library
// which follows pointers and prints actual values of the nested objects
// ensuring the hash does not change when a pointer changes.
func DeepHashObject(hasher hash.Hash, objectToWrite interface{}) {
	hasher.Reset()
	printer := spew.ConfigState{
		Indent:         " ",
		SortKeys:       true,
		DisableMethods: true,
		SpewKeys:       true,
	}
	_, _ = printer.Fprintf(hasher, "%#v", objectToWrite)
}
