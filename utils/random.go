package utils

import (
	"fmt"

	"github.com/bwmarrin/snowflake"
)

var idGenerator *snowflake.Node

func init() {
	var err error
	idGenerator, err = snowflake.NewNode(1)
	if err != nil {
		fmt.Println(err)
		return
	}
}

// SetIDNode rebinds the generator to the cluster node number so inode ids
// allocated on different metadata servers never collide.
func SetIDNode(node int64) error {
	n, err := snowflake.NewNode(node)
	if err != nil {
		return err
	}
	idGenerator = n
	return nil
}

func GenerateNewID() int64 {
	return idGenerator.Generate().Int64()
}
