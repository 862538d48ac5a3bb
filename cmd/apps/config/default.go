package config

import "path"

const (
	defaultSqliteFile = "nanamds.db"
)

func localConfigFilePath(local string) string {
	return path.Join(local, "nanamds.conf")
}

func localDbFilePath(local string) string {
	return path.Join(local, defaultSqliteFile)
}
