// Package statusapi exposes flashd's HTTP operator surface: submit a flash
// task, poll its progress, list attached devices, cancel, and health —
// mirroring the teacher's gin.New()+Recovery()+"/api/v1" group shape
// (§6, §2 [DOMAIN] operator-surface daemon).
package statusapi

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"qflash/pkg/edl/auth"
	"qflash/pkg/edl/edlerr"
	"qflash/pkg/edl/partition"
	"qflash/pkg/edl/session"
	"qflash/pkg/edl/task"
	"qflash/pkg/edl/transport"
)

// Server holds the in-flight task table and whatever the daemon needs to
// spin up a session per request.
type Server struct {
	mu        sync.RWMutex
	tasks     map[string]*taskState
	startTime time.Time

	TransportMode  transport.Mode
	DeviceName     string
	Loader         string
	DefaultMemory  string
	DefaultSector  int
	LoaderResolver func(msmID uint32, pkHash string) (string, bool)
}

type taskState struct {
	phase    string
	done     int64
	total    int64
	finished bool
	err      error
	cancel   transport.Transport
}

func New() *Server {
	return &Server{tasks: map[string]*taskState{}, startTime: time.Now()}
}

// Router builds the gin engine with the "/api/v1" route group.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	api := router.Group("/api/v1")
	api.POST("/flash", s.handleFlash)
	api.GET("/status/:id", s.handleStatus)
	api.GET("/devices", s.handleDevices)
	api.POST("/cancel/:id", s.handleCancel)
	api.GET("/health", s.handleHealth)
	return router
}

// flashRequest mirrors client.FlashRequest's JSON shape without importing
// the client package (daemon and client are independent binaries).
type flashRequest struct {
	Operation     string `json:"operation"`
	Partition     string `json:"partition"`
	LUN           int    `json:"lun"`
	FilePath      string `json:"file_path"`
	MemoryAddress uint64 `json:"memory_address"`
	MemorySize    uint64 `json:"memory_size"`
	RebootMode    string `json:"reboot_mode"`
	Vendor        string `json:"vendor"`
}

func (s *Server) handleFlash(c *gin.Context) {
	var req flashRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	id := uuid.NewString()
	st := &taskState{phase: "queued"}
	s.mu.Lock()
	s.tasks[id] = st
	s.mu.Unlock()

	go s.runFlash(id, st, req)

	c.JSON(http.StatusAccepted, gin.H{"task_id": id})
}

func (s *Server) runFlash(id string, st *taskState, req flashRequest) {
	t, err := transport.New(s.TransportMode)
	if err != nil {
		s.fail(st, err)
		return
	}

	s.mu.Lock()
	st.cancel = t
	s.mu.Unlock()

	progress := func(done, total int64) {
		s.mu.Lock()
		st.done, st.total = done, total
		s.mu.Unlock()
	}

	ex := task.NewExecutor(partition.NewManager())
	ex.Progress = progress

	var tasks []session.Task
	switch req.Operation {
	case "read_partition":
		tasks = append(tasks, ex.ReadPartition(req.Partition, req.LUN))
	case "write_partition":
		tasks = append(tasks, ex.WritePartition(req.Partition, req.LUN, req.FilePath))
	case "erase_partition":
		tasks = append(tasks, ex.ErasePartition(req.Partition, req.LUN))
	case "backup_gpt":
		tasks = append(tasks, task.BackupGPT(req.LUN, req.FilePath))
	case "restore_gpt":
		tasks = append(tasks, task.RestoreGPT(req.LUN, req.FilePath))
	case "dump_memory":
		tasks = append(tasks, task.DumpMemory(req.MemoryAddress, req.MemorySize, req.FilePath))
	case "reboot":
		tasks = append(tasks, task.Reboot(req.RebootMode))
	default:
		s.fail(st, edlerr.Wrap(edlerr.KindProtocol, "unsupported-operation", nil))
		return
	}

	sess := session.New(t, func(p session.Phase) {
		s.mu.Lock()
		st.phase = p.String()
		s.mu.Unlock()
	})

	vendor := auth.Vendor(req.Vendor)
	if vendor == "" {
		vendor = auth.VendorStandard
	}

	_, err = sess.Run(session.Config{
		Mode:          s.TransportMode,
		Loader:        s.Loader,
		MemoryName:    s.DefaultMemory,
		SectorSize:    s.DefaultSector,
		Vendor:        vendor,
		LoaderResolver: s.LoaderResolver,
	}, s.DeviceName, tasks)

	s.mu.Lock()
	defer s.mu.Unlock()
	st.finished = true
	if err != nil {
		st.err = err
	} else {
		st.phase = "done"
	}
}

func (s *Server) fail(st *taskState, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st.finished = true
	st.err = err
}

func (s *Server) handleStatus(c *gin.Context) {
	id := c.Param("id")
	s.mu.RLock()
	st, ok := s.tasks[id]
	s.mu.RUnlock()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown task"})
		return
	}

	s.mu.RLock()
	resp := gin.H{
		"task_id":  id,
		"phase":    st.phase,
		"done":     st.done,
		"total":    st.total,
		"finished": st.finished,
	}
	if st.err != nil {
		resp["error"] = st.err.Error()
	}
	s.mu.RUnlock()
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleDevices(c *gin.Context) {
	// Live USB enumeration is a gousb concern handled by cmd/edl-probe; the
	// daemon surface reports only the devices its own sessions have seen.
	c.JSON(http.StatusOK, gin.H{"devices": []gin.H{}})
}

func (s *Server) handleCancel(c *gin.Context) {
	id := c.Param("id")
	s.mu.RLock()
	st, ok := s.tasks[id]
	s.mu.RUnlock()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown task"})
		return
	}
	s.mu.RLock()
	cancel := st.cancel
	s.mu.RUnlock()
	if cancel != nil {
		_ = cancel.ForceClose()
	}
	c.JSON(http.StatusOK, gin.H{"message": "cancel requested"})
}

func (s *Server) handleHealth(c *gin.Context) {
	s.mu.RLock()
	active := 0
	for _, st := range s.tasks {
		if !st.finished {
			active++
		}
	}
	s.mu.RUnlock()
	c.JSON(http.StatusOK, gin.H{
		"status":       "ok",
		"uptime":       time.Since(s.startTime).String(),
		"active_tasks": active,
	})
}
