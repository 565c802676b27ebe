package service

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	"semester-planner/internal/dto"
	"semester-planner/internal/model"
	"semester-planner/internal/session"
	"semester-planner/pkg/jwt"
)

// PlannerService 选课会话业务接口
//
// 所有方法以会话 ID 定位会话；ID 来自会话令牌，由中间件解析。
type PlannerService interface {
	Create(ctx context.Context) (*dto.CreateSessionResponse, error)
	Get(ctx context.Context, id string) (*dto.SessionResponse, error)

	AddSection(ctx context.Context, id string, crn int) (*dto.SectionActionResponse, error)
	SwitchSection(ctx context.Context, id string, crn int) (*dto.SectionActionResponse, error)
	RemoveSection(ctx context.Context, id string, crn int) (*dto.SectionActionResponse, error)
	RemoveCourse(ctx context.Context, id, subject string, course int) (*dto.RemoveCourseResponse, error)
	ClearSections(ctx context.Context, id string) error
	AddTempSection(ctx context.Context, id string, crn int) (*dto.SectionActionResponse, error)
	RemoveTempSection(ctx context.Context, id string, crn int) (*dto.SectionActionResponse, error)

	SectionConflict(ctx context.Context, id string, crn int) (*dto.ConflictResponse, error)
	CourseConflict(ctx context.Context, id, subject string, course int) (*dto.ConflictResponse, error)

	AddBlockOut(ctx context.Context, id string, req *dto.BlockOutRequest) (*model.BlockOut, error)
	RemoveBlockOut(ctx context.Context, id, blockOutID string) (bool, error)
	ClearBlockOuts(ctx context.Context, id string) error
	ImportBlockOuts(ctx context.Context, id string, r io.Reader) (*dto.ImportBlockOutsResponse, error)
	ImportBlockOutsFromURL(ctx context.Context, id, rawURL string) (*dto.ImportBlockOutsResponse, error)

	Calendar(ctx context.Context, id string) ([]CalendarEvent, error)
	Subscribe(ctx context.Context, id string) (<-chan session.Snapshot, func(), error)

	// Close 关闭全部会话，服务退出时调用
	Close()
}

type plannerService struct {
	sessions *sessionManager
	jwtMgr   *jwt.Manager
	logger   *zap.Logger
}

// NewPlannerService 创建 PlannerService 实例
func NewPlannerService(sessions *sessionManager, jwtMgr *jwt.Manager, logger *zap.Logger) PlannerService {
	return &plannerService{sessions: sessions, jwtMgr: jwtMgr, logger: logger}
}

// ────────────────────── Create ──────────────────────

func (s *plannerService) Create(ctx context.Context) (*dto.CreateSessionResponse, error) {
	e, err := s.sessions.create(ctx)
	if err != nil {
		return nil, err
	}

	id := e.session.ID()
	token, err := s.jwtMgr.GenerateSessionToken(id)
	if err != nil {
		s.logger.Error("签发会话令牌失败", zap.String("session_id", id), zap.Error(err))
		return nil, err
	}

	return &dto.CreateSessionResponse{
		SessionID: id,
		Token:     token,
		ExpiresIn: int(s.jwtMgr.TTL().Seconds()),
	}, nil
}

// ────────────────────── Get ──────────────────────

func (s *plannerService) Get(ctx context.Context, id string) (*dto.SessionResponse, error) {
	e, err := s.sessions.lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	return toSessionResponse(id, e.session.Snapshot()), nil
}

// ────────────────────── 已选班级 ──────────────────────

func (s *plannerService) AddSection(ctx context.Context, id string, crn int) (*dto.SectionActionResponse, error) {
	e, err := s.sessions.lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	action := e.session.AddSection(crn)
	return &dto.SectionActionResponse{CRN: crn, Action: string(action)}, nil
}

func (s *plannerService) SwitchSection(ctx context.Context, id string, crn int) (*dto.SectionActionResponse, error) {
	e, err := s.sessions.lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	action, err := e.session.Switch(crn)
	if err != nil {
		return nil, err
	}
	return &dto.SectionActionResponse{CRN: crn, Action: string(action)}, nil
}

func (s *plannerService) RemoveSection(ctx context.Context, id string, crn int) (*dto.SectionActionResponse, error) {
	e, err := s.sessions.lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	action := session.ActionNone
	if e.session.RemoveSection(crn) {
		action = session.ActionRemoved
	}
	return &dto.SectionActionResponse{CRN: crn, Action: string(action)}, nil
}

func (s *plannerService) RemoveCourse(ctx context.Context, id, subject string, course int) (*dto.RemoveCourseResponse, error) {
	e, err := s.sessions.lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	return &dto.RemoveCourseResponse{Removed: e.session.RemoveCourse(subject, course)}, nil
}

func (s *plannerService) ClearSections(ctx context.Context, id string) error {
	e, err := s.sessions.lookup(ctx, id)
	if err != nil {
		return err
	}
	e.session.ClearSections()
	return nil
}

// ────────────────────── 临时班级 ──────────────────────

func (s *plannerService) AddTempSection(ctx context.Context, id string, crn int) (*dto.SectionActionResponse, error) {
	e, err := s.sessions.lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	action := session.ActionNone
	if e.session.AddTempSection(crn) {
		action = session.ActionAdded
	}
	return &dto.SectionActionResponse{CRN: crn, Action: string(action)}, nil
}

func (s *plannerService) RemoveTempSection(ctx context.Context, id string, crn int) (*dto.SectionActionResponse, error) {
	e, err := s.sessions.lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	action := session.ActionNone
	if e.session.RemoveTempSection(crn) {
		action = session.ActionRemoved
	}
	return &dto.SectionActionResponse{CRN: crn, Action: string(action)}, nil
}

// ────────────────────── 冲突 ──────────────────────

func (s *plannerService) SectionConflict(ctx context.Context, id string, crn int) (*dto.ConflictResponse, error) {
	e, err := s.sessions.lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	ok, err := e.session.IsSectionConflict(crn)
	if err != nil {
		return nil, err
	}
	return &dto.ConflictResponse{Conflict: ok, Selected: e.session.IsSectionAdded(crn)}, nil
}

func (s *plannerService) CourseConflict(ctx context.Context, id, subject string, course int) (*dto.ConflictResponse, error) {
	e, err := s.sessions.lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	ok, err := e.session.IsCourseConflict(subject, course)
	if err != nil {
		return nil, err
	}
	return &dto.ConflictResponse{Conflict: ok}, nil
}

// ────────────────────── 屏蔽时段 ──────────────────────

func (s *plannerService) AddBlockOut(ctx context.Context, id string, req *dto.BlockOutRequest) (*model.BlockOut, error) {
	e, err := s.sessions.lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	b, err := e.session.AddBlockOut(req.Text, req.Start, req.End)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *plannerService) RemoveBlockOut(ctx context.Context, id, blockOutID string) (bool, error) {
	e, err := s.sessions.lookup(ctx, id)
	if err != nil {
		return false, err
	}
	return e.session.RemoveBlockOut(blockOutID), nil
}

func (s *plannerService) ClearBlockOuts(ctx context.Context, id string) error {
	e, err := s.sessions.lookup(ctx, id)
	if err != nil {
		return err
	}
	e.session.ClearBlockOuts()
	return nil
}

// ImportBlockOuts 将日历文件中落在本周的事件导入为屏蔽时段
func (s *plannerService) ImportBlockOuts(ctx context.Context, id string, r io.Reader) (*dto.ImportBlockOutsResponse, error) {
	e, err := s.sessions.lookup(ctx, id)
	if err != nil {
		return nil, err
	}

	busy, err := ParseBusyICS(r, s.sessions.now(), s.sessions.loc)
	if err != nil {
		return nil, err
	}

	added := make([]model.BlockOut, 0, len(busy))
	for _, b := range busy {
		got, err := e.session.AddBlockOut(b.Text, b.Start, b.End)
		if err != nil {
			s.logger.Debug("跳过无效的日历事件", zap.String("text", b.Text), zap.Error(err))
			continue
		}
		added = append(added, got)
	}

	s.logger.Info("导入日历屏蔽时段",
		zap.String("session_id", id),
		zap.Int("events", len(busy)),
		zap.Int("imported", len(added)),
	)
	return &dto.ImportBlockOutsResponse{Imported: len(added), BlockOuts: added}, nil
}

// ImportBlockOutsFromURL 从远程日历（http(s) 或 webcal）导入
func (s *plannerService) ImportBlockOutsFromURL(ctx context.Context, id, rawURL string) (*dto.ImportBlockOutsResponse, error) {
	if _, err := s.sessions.lookup(ctx, id); err != nil {
		return nil, err
	}
	body, err := FetchICSContent(ctx, rawURL)
	if err != nil {
		s.logger.Warn("获取远程日历失败", zap.String("url", rawURL), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrICSInvalid, err)
	}
	defer body.Close()
	return s.ImportBlockOuts(ctx, id, body)
}

// ────────────────────── 日历与推送 ──────────────────────

func (s *plannerService) Calendar(ctx context.Context, id string) ([]CalendarEvent, error) {
	e, err := s.sessions.lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	return WeekEvents(e.session.Snapshot(), s.sessions.now().In(s.sessions.loc)), nil
}

func (s *plannerService) Subscribe(ctx context.Context, id string) (<-chan session.Snapshot, func(), error) {
	e, err := s.sessions.lookup(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	release := e.hold()
	ch, cancel := e.session.Subscribe()
	return ch, func() { cancel(); release() }, nil
}

func (s *plannerService) Close() { s.sessions.closeAll() }

// ── 辅助函数 ──

func toSessionResponse(id string, snap session.Snapshot) *dto.SessionResponse {
	resp := &dto.SessionResponse{
		SessionID:    id,
		Version:      snap.Version,
		Sections:     snap.Selected,
		TempSections: snap.Temp,
		BlockOuts:    snap.BlockOuts,
	}
	for _, sec := range snap.Selected {
		resp.Credits.Min += sec.Credits.Lo
		resp.Credits.Max += sec.Credits.Hi
	}
	return resp
}
