package ledger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jbarria/archivador/constants"
	"github.com/jbarria/archivador/internal/common"
)

func tempLedger(t *testing.T) *Ledger {
	t.Helper()
	l, err := Open(filepath.Join(t.TempDir(), "ARCHIVADOR_01.csv"), nil)
	require.NoError(t, err)
	return l
}

func ingestRow(i int) Row {
	return Row{
		PageIndex: i,
		ImageName: "000" + string(rune('0'+i)) + ".jpg",
		ImagePath: "imagenes/000" + string(rune('0'+i)) + ".jpg",
	}
}

func TestAppendAndReload(t *testing.T) {
	l := tempLedger(t)
	require.NoError(t, l.AppendRow(ingestRow(1)))
	require.NoError(t, l.AppendRow(ingestRow(2)))

	re, err := Open(l.Path(), nil)
	require.NoError(t, err)
	require.Equal(t, 2, re.Len())
	assert.NoError(t, re.Validate())
	row, ok := re.Get(2)
	require.True(t, ok)
	assert.Equal(t, "imagenes/0002.jpg", row.ImagePath)
	assert.False(t, row.Excluded)
}

func TestOpenCorruptFileWrapsErrLedger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roto.csv")
	header := strings.Join(constants.IngestColumns, ",")
	require.NoError(t, os.WriteFile(path, []byte(header+"\nno-un-numero,0001.jpg,imagenes/0001.jpg,NO\n"), 0o644))

	_, err := Open(path, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrLedger)
}

func TestAppendOutOfOrderRejected(t *testing.T) {
	l := tempLedger(t)
	require.NoError(t, l.AppendRow(ingestRow(1)))
	assert.Error(t, l.AppendRow(ingestRow(3)))
}

func TestRoundTripPreservesEveryField(t *testing.T) {
	l := tempLedger(t)
	require.NoError(t, l.AppendRow(ingestRow(1)))
	require.NoError(t, l.Migrate(constants.ExtractColumns...))
	require.NoError(t, l.UpdateRow(1, func(r *Row) {
		r.Folio = "12345678"
		r.Q1Text = "JUAN PEREZ 12.345.678-9"
		r.Q2Text = "15/03/2024 VIGENTE"
		r.RUT = "12.345.678-9"
		r.Date = "15/03/2024"
		r.Name = "JUAN PEREZ"
		r.StatusCode = "1"
		r.TypeCode = "3"
		r.Note = "revisar, con coma"
		r.Excluded = true
	}))

	re, err := Open(l.Path(), nil)
	require.NoError(t, err)
	row, ok := re.Get(1)
	require.True(t, ok)
	assert.Equal(t, "12345678", row.Folio)
	assert.Equal(t, "JUAN PEREZ 12.345.678-9", row.Q1Text)
	assert.Equal(t, "15/03/2024 VIGENTE", row.Q2Text)
	assert.Equal(t, "12.345.678-9", row.RUT)
	assert.Equal(t, "15/03/2024", row.Date)
	assert.Equal(t, "JUAN PEREZ", row.Name)
	assert.Equal(t, "1", row.StatusCode)
	assert.Equal(t, "3", row.TypeCode)
	assert.Equal(t, "revisar, con coma", row.Note)
	assert.True(t, row.Excluded)
}

func TestMigrateIsIdempotent(t *testing.T) {
	l := tempLedger(t)
	require.NoError(t, l.AppendRow(ingestRow(1)))
	require.NoError(t, l.Migrate(constants.ExtractColumns...))
	cols := l.Columns()
	require.NoError(t, l.Migrate(constants.ExtractColumns...))
	assert.Equal(t, cols, l.Columns())
}

func TestMigrationDefaultsForOldRows(t *testing.T) {
	// rows written before the extraction columns existed read back with
	// empty-string defaults, and the exclusion flag is parsed from NO
	l := tempLedger(t)
	require.NoError(t, l.AppendRow(ingestRow(1)))

	re, err := Open(l.Path(), nil)
	require.NoError(t, err)
	require.NoError(t, re.Migrate(constants.ExtractColumns...))
	row, _ := re.Get(1)
	assert.Equal(t, "", row.Folio)
	assert.Equal(t, "", row.Note)
	assert.False(t, row.Excluded)
}

func TestUnknownColumnsPreserved(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "legacy.csv")
	content := strings.Join([]string{
		"numero_hoja,nombre_img,path_img,ocultar,revision_extra",
		"1,0001.jpg,imagenes/0001.jpg,NO,pendiente",
	}, "\n") + "\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	l, err := Open(path, nil)
	require.NoError(t, err)
	require.NoError(t, l.UpdateRow(1, func(r *Row) { r.Note = "x" }))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "revision_extra")
	assert.Contains(t, string(raw), "pendiente")
}

func TestSetFieldHumanEdit(t *testing.T) {
	l := tempLedger(t)
	require.NoError(t, l.AppendRow(ingestRow(1)))
	require.NoError(t, l.Migrate(constants.ExtractColumns...))

	require.NoError(t, l.SetField(1, constants.ColFolio, "87654321"))
	require.NoError(t, l.SetField(1, constants.ColExcluded, constants.ExcludedYes))

	re, err := Open(l.Path(), nil)
	require.NoError(t, err)
	row, _ := re.Get(1)
	assert.Equal(t, "87654321", row.Folio)
	assert.True(t, row.Excluded)
}

func TestSetFieldUnknownPage(t *testing.T) {
	l := tempLedger(t)
	require.NoError(t, l.AppendRow(ingestRow(1)))
	err := l.SetField(9, constants.ColNote, "x")
	assert.ErrorIs(t, err, ErrPageNotFound)
}

func TestExclusionDefaultLiteral(t *testing.T) {
	l := tempLedger(t)
	require.NoError(t, l.AppendRow(ingestRow(1)))
	raw, err := os.ReadFile(l.Path())
	require.NoError(t, err)
	assert.Contains(t, string(raw), ",NO")
}
