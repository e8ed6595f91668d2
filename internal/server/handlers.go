package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cast"

	"github.com/pders01/repowatch/internal/git"
	"github.com/pders01/repowatch/internal/tracker"
)

const defaultHistoryLimit = 50

// writeError maps err to a status code and writes an ErrorResponse
func (s *Server) writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	code := "internal"

	switch kind := git.KindOf(err); kind {
	case git.KindNoRepository:
		status, code = http.StatusNotFound, kind.String()
	case git.KindInvalidInput:
		status, code = http.StatusBadRequest, kind.String()
	case git.KindUnderlying, git.KindIo, git.KindWatchFailure:
		code = kind.String()
	default:
		if errors.Is(err, tracker.ErrClosed) {
			status, code = http.StatusServiceUnavailable, "closed"
		}
	}

	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "path", c.Request.URL.Path, "error", err)
	}
	c.JSON(status, ErrorResponse{Error: git.Message(err), Code: code})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: git.KindInvalidInput.String()})
}

func (s *Server) health(c *gin.Context) {
	state := s.svc.State()
	root, _ := state.RepositoryRoot()
	c.JSON(http.StatusOK, HealthResponse{
		Status:  "ok",
		Phase:   state.Phase().String(),
		Root:    root,
		Watched: state.WatchedRoot(),
		Clients: s.hub.count(),
	})
}

func (s *Server) detectRepository(c *gin.Context) {
	var req RootRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	root, err := s.svc.DetectRepository(c.Request.Context(), req.Root)
	if err != nil {
		s.writeError(c, err)
		return
	}
	if root == "" {
		c.JSON(http.StatusOK, RootResponse{})
		return
	}
	c.JSON(http.StatusOK, RootResponse{Root: &root})
}

func (s *Server) initRepository(c *gin.Context) {
	var req RootRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	root, err := s.svc.InitRepository(c.Request.Context(), req.Root)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, RootResponse{Root: &root})
}

func (s *Server) getStatus(c *gin.Context) {
	status, err := s.svc.GetStatus(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

func (s *Server) refreshStatus(c *gin.Context) {
	status, err := s.svc.RefreshStatus(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

func (s *Server) getFileStatuses(c *gin.Context) {
	var req PathsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	statuses, err := s.svc.GetFileStatuses(c.Request.Context(), req.Paths)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, statuses)
}

func (s *Server) stageFile(c *gin.Context) {
	var req PathRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := s.svc.StageFile(c.Request.Context(), req.Path); err != nil {
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) unstageFile(c *gin.Context) {
	var req PathRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := s.svc.UnstageFile(c.Request.Context(), req.Path); err != nil {
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) stageAll(c *gin.Context) {
	n, err := s.svc.StageAll(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, CountResponse{Count: n})
}

func (s *Server) unstageAll(c *gin.Context) {
	n, err := s.svc.UnstageAll(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, CountResponse{Count: n})
}

func (s *Server) discardChanges(c *gin.Context) {
	var req PathsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := s.svc.DiscardChanges(c.Request.Context(), req.Paths); err != nil {
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) commit(c *gin.Context) {
	var req CommitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	id, err := s.svc.Commit(c.Request.Context(), req.Message)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, CommitResponse{Commit: id})
}

func (s *Server) getHistory(c *gin.Context) {
	offset, err := cast.ToUint32E(c.DefaultQuery("offset", "0"))
	if err != nil {
		badRequest(c, errors.New("offset must be a non-negative integer"))
		return
	}
	limit, err := cast.ToUint32E(c.DefaultQuery("limit", cast.ToString(defaultHistoryLimit)))
	if err != nil {
		badRequest(c, errors.New("limit must be a non-negative integer"))
		return
	}

	commits, err := s.svc.GetHistory(c.Request.Context(), offset, limit)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, commits)
}

func (s *Server) getDiff(c *gin.Context) {
	path := c.Query("path")
	if path == "" {
		badRequest(c, errors.New("path is required"))
		return
	}
	staged, err := cast.ToBoolE(c.DefaultQuery("staged", "false"))
	if err != nil {
		badRequest(c, errors.New("staged must be a boolean"))
		return
	}

	get := s.svc.GetFileDiff
	if staged {
		get = s.svc.GetStagedDiff
	}
	diff, err := get(c.Request.Context(), path)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, diff)
}

func (s *Server) getDiffs(c *gin.Context) {
	var req DiffsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	results, err := s.svc.GetFileDiffs(c.Request.Context(), req.Paths, req.Staged)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, results)
}
