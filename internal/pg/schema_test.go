package pg

import (
	"strings"
	"testing"

	"cascade/internal/dsl"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateDDLDefaultHierarchy(t *testing.T) {
	h := dsl.Default()
	ddl, err := GenerateDDL(h)
	require.NoError(t, err)
	require.Len(t, ddl, 2)

	tables := ddl["000_geo.region_options"]
	assert.Contains(t, tables, `create schema if not exists "geo";`)
	assert.Contains(t, tables, `create table if not exists "geo"."region_options"`)
	assert.Contains(t, tables, `"level" < 5`)
	assert.Contains(t, tables, `primary key ("level", "parent_code", "code")`)

	idx := ddl["100_geo.region_options_ord"]
	assert.True(t, strings.HasPrefix(idx, `create index if not exists "region_options_ord_idx"`))

	assert.Equal(t, `"geo"."region_options"`, Table(h))
}

func TestGenerateDDLNames(t *testing.T) {
	h := &dsl.Hierarchy{Name: "Org", Levels: []dsl.Level{{Name: "dept", Type: "select"}}}
	ddl, err := GenerateDDL(h)
	require.NoError(t, err)
	assert.Contains(t, ddl, "000_public.org_options", "module-less hierarchy goes to public")
	assert.Equal(t, `"public"."org_options"`, Table(h))

	_, err = GenerateDDL(&dsl.Hierarchy{Name: "empty"})
	assert.Error(t, err)
}
