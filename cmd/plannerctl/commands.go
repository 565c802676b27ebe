package main

import (
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"semester-planner/internal/conflict"
	"semester-planner/internal/explorer"
	"semester-planner/internal/filter"
	"semester-planner/internal/model"
	"semester-planner/internal/sorter"
)

var metaCmd = &cobra.Command{
	Use:   "meta",
	Short: "Show dataset timestamp, semester and entity counts",
	Args:  cobra.NoArgs,
	RunE:  runMeta,
}

var sectionCmd = &cobra.Command{
	Use:   "section <crn>...",
	Short: "Look up sections by CRN",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSection,
}

var instructorCmd = &cobra.Command{
	Use:   "instructor <name>",
	Short: "List the sections taught by an instructor",
	Args:  cobra.ExactArgs(1),
	RunE:  runInstructor,
}

var randomCmd = &cobra.Command{
	Use:   "random [key=value]...",
	Short: "Pick a random section matching the given filters",
	Long: `Pick a random section. Filters use the explorer keys:
subject, course, title, instructor, section, session, tags, cr.`,
	RunE: runRandom,
}

var filterCmd = &cobra.Command{
	Use:   "filter [key=value]...",
	Short: "Filter, sort and page sections",
	Long: `Filter sections with explorer keys (subject, course, title, instructor,
section, session, tags, cr) and sort with --sort (prefix "-" for descending).`,
	RunE: runFilter,
}

var conflictsCmd = &cobra.Command{
	Use:   "conflicts <crn> <crn>...",
	Short: "Report every conflicting pair among the given sections",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runConflicts,
}

var (
	sortFlag     string
	pageFlag     int
	pageSizeFlag int
)

func init() {
	filterCmd.Flags().StringVar(&sortFlag, "sort", "", `sort key, e.g. "title" or "-cap"`)
	filterCmd.Flags().IntVar(&pageFlag, "page", 1, "page number")
	filterCmd.Flags().IntVar(&pageSizeFlag, "page-size", explorer.DefaultPageSize, "page size")
}

// ── meta ──

type metaOutput struct {
	Timestamp string `json:"timestamp" yaml:"timestamp"`
	Semester  string `json:"semester,omitempty" yaml:"semester,omitempty"`
	Year      int    `json:"year,omitempty" yaml:"year,omitempty"`
	Subjects  int    `json:"subjects" yaml:"subjects"`
	Courses   int    `json:"courses" yaml:"courses"`
	Sections  int    `json:"sections" yaml:"sections"`
	Teachers  int    `json:"instructors" yaml:"instructors"`
}

func runMeta(cmd *cobra.Command, _ []string) error {
	idx, err := loadIndex(cmd.Context())
	if err != nil {
		return err
	}
	stats := idx.Stats()
	out := metaOutput{
		Timestamp: idx.Timestamp().UTC().Format("2006-01-02T15:04:05.000Z"),
		Subjects:  stats.Subjects,
		Courses:   stats.Courses,
		Sections:  stats.Sections,
		Teachers:  stats.Instructors,
	}
	if meta, ok := idx.SemesterMeta(); ok {
		out.Semester, out.Year = meta.Semester, meta.Year
	}
	return printResult(cmd.OutOrStdout(), out)
}

// ── section / instructor ──

func runSection(cmd *cobra.Command, args []string) error {
	crns, err := parseCRNs(args)
	if err != nil {
		return err
	}
	idx, err := loadIndex(cmd.Context())
	if err != nil {
		return err
	}
	out := make([]model.Section, 0, len(crns))
	for _, crn := range crns {
		sec, err := idx.GetSection(crn)
		if err != nil {
			return fmt.Errorf("CRN %d: %w", crn, err)
		}
		out = append(out, sec)
	}
	return printResult(cmd.OutOrStdout(), out)
}

func runInstructor(cmd *cobra.Command, args []string) error {
	idx, err := loadIndex(cmd.Context())
	if err != nil {
		return err
	}
	sections, err := idx.GetInstructorSections(args[0])
	if err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}
	return printResult(cmd.OutOrStdout(), sections)
}

// ── random / filter ──

func runRandom(cmd *cobra.Command, args []string) error {
	query, err := parseFilterArgs(args)
	if err != nil {
		return err
	}
	idx, err := loadIndex(cmd.Context())
	if err != nil {
		return err
	}
	fields, err := filter.BuildFields(idx, query)
	if err != nil {
		return err
	}
	pred := filter.BuildPredicate(fields)
	if len(filter.Filter(idx.GetAllSections(), pred)) == 0 {
		return fmt.Errorf("没有满足条件的班级")
	}
	sec, err := idx.GetRandomSection(pred)
	if err != nil {
		return err
	}
	return printResult(cmd.OutOrStdout(), sec)
}

func runFilter(cmd *cobra.Command, args []string) error {
	query, err := parseFilterArgs(args)
	if err != nil {
		return err
	}
	st, err := parseSort(sortFlag)
	if err != nil {
		return err
	}
	idx, err := loadIndex(cmd.Context())
	if err != nil {
		return err
	}
	fields, err := filter.BuildFields(idx, query)
	if err != nil {
		return err
	}
	view := explorer.List(idx, filter.BuildPredicate(fields), st, pageFlag, pageSizeFlag)
	return printResult(cmd.OutOrStdout(), view)
}

// ── conflicts ──

type conflictPair struct {
	A int `json:"a" yaml:"a"`
	B int `json:"b" yaml:"b"`
}

func runConflicts(cmd *cobra.Command, args []string) error {
	crns, err := parseCRNs(args)
	if err != nil {
		return err
	}
	idx, err := loadIndex(cmd.Context())
	if err != nil {
		return err
	}
	sections := make([]model.Section, 0, len(crns))
	for _, crn := range crns {
		sec, err := idx.GetSection(crn)
		if err != nil {
			return fmt.Errorf("CRN %d: %w", crn, err)
		}
		sections = append(sections, sec)
	}

	checker := conflict.NewChecker()
	pairs := []conflictPair{}
	for i := range sections {
		for j := i + 1; j < len(sections); j++ {
			if checker.Conflicts(&sections[i], &sections[j]) {
				pairs = append(pairs, conflictPair{A: sections[i].CRN, B: sections[j].CRN})
			}
		}
	}
	return printResult(cmd.OutOrStdout(), pairs)
}

// ── 参数解析 ──

func parseCRNs(args []string) ([]int, error) {
	out := make([]int, 0, len(args))
	for _, a := range args {
		n, err := strconv.Atoi(a)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("无效的 CRN %q", a)
		}
		out = append(out, n)
	}
	return out, nil
}

// parseFilterArgs 把 key=value 参数转成与 HTTP 查询相同的 url.Values
func parseFilterArgs(args []string) (url.Values, error) {
	q := url.Values{}
	for _, a := range args {
		k, v, ok := strings.Cut(a, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("筛选参数应为 key=value, 实际 %q", a)
		}
		if !slices.Contains(filter.Keys, filter.Key(k)) {
			return nil, fmt.Errorf("%w: %s", filter.ErrUnknownField, k)
		}
		q.Set(k, v)
	}
	return q, nil
}

func parseSort(raw string) (sorter.State, error) {
	if raw == "" {
		return sorter.Default(), nil
	}
	st := sorter.State{Key: sorter.Key(strings.TrimPrefix(raw, "-")), Ascending: !strings.HasPrefix(raw, "-")}
	if slices.Contains(sorter.Keys, st.Key) {
		return st, nil
	}
	return sorter.State{}, fmt.Errorf("无效的排序列 %q", raw)
}
