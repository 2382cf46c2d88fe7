package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
)

func TestDialector(t *testing.T) {
	assert.IsType(t, &postgres.Dialector{}, dialector("postgres://u:p@localhost:5432/tasks"))
	assert.IsType(t, &postgres.Dialector{}, dialector("postgresql://localhost/tasks"))
	assert.IsType(t, &mysql.Dialector{}, dialector("mysql://u:p@tcp(localhost:3306)/tasks?parseTime=true"))
	assert.IsType(t, &sqlite.Dialector{}, dialector("tasksvc.db"))
}

func TestOpenInMemoryIsIsolated(t *testing.T) {
	type row struct {
		ID   uint64
		Name string
	}

	a, err := OpenInMemory(&row{})
	assert.NoError(t, err)
	b, err := OpenInMemory(&row{})
	assert.NoError(t, err)

	assert.NoError(t, a.Create(&row{Name: "only in a"}).Error)

	var n int64
	assert.NoError(t, b.Model(&row{}).Count(&n).Error)
	assert.Equal(t, int64(0), n)
}
