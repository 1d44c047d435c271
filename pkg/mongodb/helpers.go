package mongodb

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// Now returns the current time in UTC truncated to BSON precision.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

// VersionFilter matches a document by id and expected version.
func VersionFilter(id string, version int64) bson.M {
	return bson.M{"_id": id, "version": version}
}

// IsDuplicateKey reports whether err is a unique index violation.
func IsDuplicateKey(err error) bool {
	return mongo.IsDuplicateKeyError(err)
}
