package journal

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRollbackUndoesInReverseOrder(t *testing.T) {
	var (
		log   Log
		value = []int{1}
	)

	log.Begin()
	value = append(value, 2)
	log.Record(func() { value = value[:1] })
	value = append(value, 3)
	log.Record(func() { value = value[:2] })

	log.Rollback()

	assert.Equal(t, []int{1}, value)
	assert.False(t, log.Active())
	assert.Zero(t, log.Len())
}

func TestCommitDropsRecords(t *testing.T) {
	var (
		log   Log
		value = 1
	)

	log.Begin()
	value = 2
	log.Record(func() { value = 1 })
	log.Commit()

	//rollback after commit has nothing to undo
	log.Rollback()
	assert.Equal(t, 2, value)
}

func TestRecordOutsideTransactionIsIgnored(t *testing.T) {
	var log Log

	log.Record(func() { t.Fatal("should never run") })
	assert.Zero(t, log.Len())

	log.Begin()
	log.Rollback()
}
