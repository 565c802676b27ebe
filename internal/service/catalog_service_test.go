package service

import (
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"semester-planner/internal/catalog"
	"semester-planner/internal/catalog/catalogtest"
	apperrors "semester-planner/pkg/errors"
)

func TestCatalogService_Meta(t *testing.T) {
	svc := NewCatalogService(catalog.Static(catalogtest.Index()), zap.NewNop())

	meta := svc.Meta()
	assert.True(t, meta.Ready)
	assert.True(t, svc.Ready())
	assert.Equal(t, "summer", meta.Semester)
	assert.Equal(t, 2024, meta.Year)
	require.NotNil(t, meta.Stats)
	assert.Equal(t, catalog.Stats{Subjects: 3, Courses: 4, Sections: 5, Instructors: 3}, *meta.Stats)
	assert.Empty(t, meta.Error)
}

func TestCatalogService_NotReady(t *testing.T) {
	loader := catalog.NewLoader("testdata/catalog.json", time.Second, zap.NewNop())
	svc := NewCatalogService(loader, zap.NewNop())

	meta := svc.Meta()
	assert.False(t, meta.Ready)
	assert.False(t, svc.Ready())
	assert.Equal(t, "testdata/catalog.json", meta.Source)
	assert.Empty(t, meta.Error, "未就绪不算加载失败")

	_, err := svc.ListSubjects()
	assert.True(t, errors.Is(err, apperrors.ErrNotReady))
}

func TestCatalogService_Lookups(t *testing.T) {
	svc := NewCatalogService(catalog.Static(catalogtest.Index()), zap.NewNop())

	subjects, err := svc.ListSubjects()
	require.NoError(t, err)
	assert.Len(t, subjects, 3)

	course, err := svc.GetCourse("CSE", 2050)
	require.NoError(t, err)
	assert.Equal(t, "Data Structures", course.Title)

	sections, err := svc.ListSections("CSE", 1001)
	require.NoError(t, err)
	assert.Equal(t, []int{100, 200}, sectionCRNs(sections))

	_, err = svc.GetSection(12345)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))

	taught, err := svc.ListInstructorSections("Smith, John")
	require.NoError(t, err)
	assert.ElementsMatch(t, []int{100, 300}, sectionCRNs(taught))
}

func TestCatalogService_RandomSection(t *testing.T) {
	svc := NewCatalogService(catalog.Static(catalogtest.Index()), zap.NewNop())

	sec, err := svc.RandomSection(url.Values{"subject": {"ECE"}})
	require.NoError(t, err)
	assert.Equal(t, 150, sec.CRN)

	_, err = svc.RandomSection(url.Values{"subject": {"MTH"}, "cr": {"1"}})
	assert.True(t, errors.Is(err, catalog.ErrSectionNotFound))
}
