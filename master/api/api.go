// Copyright 2017-2019, Square, Inc.

// Package api provides controllers for each api endpoint. Controllers are
// "dumb wiring"; there is little to no application logic in this package.
// Controllers call and coordinate other packages to satisfy the api endpoint.
// Authentication and authorization happen in middleware.
package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo"
	"github.com/labstack/echo/middleware"

	jcerr "github.com/square/jobcache/errors"
	"github.com/square/jobcache/jobcache"
	"github.com/square/jobcache/jobs"
	"github.com/square/jobcache/master/app"
	"github.com/square/jobcache/master/auth"
	"github.com/square/jobcache/payload"
	"github.com/square/jobcache/proto"
	"github.com/square/jobcache/queue"
	v "github.com/square/jobcache/version"
)

const (
	API_ROOT = "/api/v1/"
)

// API provides controllers for endpoints it registers with a router.
// It satisfies the http.HandlerFunc interface.
type API struct {
	appCtx app.Context
	// --
	echo *echo.Echo
}

// NewAPI creates a new API struct. It initializes an echo web server within the
// struct, and registers all of the API's routes with it.
func NewAPI(appCtx app.Context) *API {
	api := &API{
		appCtx: appCtx,
		// --
		echo: echo.New(),
	}

	// //////////////////////////////////////////////////////////////////////
	// Routes
	// //////////////////////////////////////////////////////////////////////

	// Job cache writes (minions and the publisher)
	api.echo.POST(API_ROOT+"jid", api.prepJidHandler)              // new jid
	api.echo.PUT(API_ROOT+"jobs/:jid/load", api.saveLoadHandler)   // save load
	api.echo.POST(API_ROOT+"jobs/:jid/returns", api.returnHandler) // minion return
	api.echo.POST(API_ROOT+"clean", api.cleanHandler)              // sweep now

	// Job queries
	api.echo.GET(API_ROOT+"jobs", api.listJobsHandler)               // -> map[jid]proto.JobSummary
	api.echo.GET(API_ROOT+"jobs/:jid", api.listJobHandler)           // -> proto.JobDetail
	api.echo.GET(API_ROOT+"jobs/:jid/returns", api.lookupJidHandler) // -> map[minion]return
	api.echo.GET(API_ROOT+"jobs/:jid/load", api.getLoadHandler)      // -> proto.Load
	api.echo.GET(API_ROOT+"active", api.activeHandler)               // -> map[jid]proto.ActiveJob

	// Queues
	api.echo.GET(API_ROOT+"queues", api.listQueuesHandler)                // -> []string
	api.echo.GET(API_ROOT+"queues/:queue", api.listItemsHandler)          // -> proto.QueueItems
	api.echo.GET(API_ROOT+"queues/:queue/length", api.queueLengthHandler) // -> proto.QueueLength
	api.echo.POST(API_ROOT+"queues/:queue", api.insertHandler)            // -> proto.QueueInsert
	api.echo.DELETE(API_ROOT+"queues/:queue", api.deleteHandler)          // delete items
	api.echo.POST(API_ROOT+"queues/:queue/pop", api.popHandler)           // -> proto.QueueItems
	api.echo.POST(API_ROOT+"queues/:queue/process", api.processHandler)   // -> proto.QueueItems

	// Meta
	api.echo.GET("/version", api.versionHandler)
	if appCtx.Metrics != nil {
		api.echo.GET("/metrics", echo.WrapHandler(appCtx.Metrics.Handler()))
	}

	// //////////////////////////////////////////////////////////////////////
	// Middleware and hooks
	// //////////////////////////////////////////////////////////////////////
	api.echo.Use(middleware.Recover())
	api.echo.Use(middleware.Logger())

	// Auth plugin: authenticate and authorize caller. This is called before
	// every route.
	a := appCtx.Plugins.Auth
	if a == nil {
		a = auth.AllowAll{}
	}
	api.echo.Use((func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Response().Header().Set("X-Jobcache-Version", v.Version())
			caller, err := a.Authenticate(c.Request())
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
			}
			if err := a.Authorize(caller, auth.Op(c.Request().Method), c.Request().URL.Path); err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
			}
			c.Set("caller", caller)
			c.Set("username", caller.Name())
			return next(c) // authenticated
		}
	}))

	// SetUsername hook, overrides ^
	if appCtx.Hooks.SetUsername != nil {
		api.echo.Use((func(next echo.HandlerFunc) echo.HandlerFunc {
			return func(c echo.Context) error {
				username, err := appCtx.Hooks.SetUsername(c.Request())
				if err != nil {
					return err
				}
				c.Set("username", username)
				return next(c)
			}
		}))
	}

	return api
}

func (api *API) Router() *echo.Echo {
	return api.echo
}

// Run makes the API listen on the configured address.
func (api *API) Run() error {
	var err error
	if api.appCtx.Config.Server.TLS.CertFile != "" && api.appCtx.Config.Server.TLS.KeyFile != "" {
		err = api.echo.StartTLS(api.appCtx.Config.Server.Addr, api.appCtx.Config.Server.TLS.CertFile, api.appCtx.Config.Server.TLS.KeyFile)
	} else {
		err = api.echo.Start(api.appCtx.Config.Server.Addr)
	}
	return err
}

// Stop stops the API when it's running. When Stop is called, Run returns
// immediately. Make sure to wait for Stop to return.
func (api *API) Stop() error {
	var err error
	if api.appCtx.Config.Server.TLS.CertFile != "" && api.appCtx.Config.Server.TLS.KeyFile != "" {
		err = api.echo.TLSServer.Shutdown(context.TODO())
	} else {
		err = api.echo.Server.Shutdown(context.TODO())
	}
	return err
}

// ServeHTTP makes the API implement the http.HandlerFunc interface.
func (api *API) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	api.echo.ServeHTTP(w, r)
}

// POST <API_ROOT>/jid?nocache=true
// Make a new jid and its job directory in the local job cache.
func (api *API) prepJidHandler(c echo.Context) error {
	nocache := c.QueryParam("nocache") == "true"
	j, err := api.appCtx.Local.PrepJid(nocache)
	if err != nil {
		return handleError(err, c)
	}
	return c.JSON(http.StatusCreated, proto.Jid{Jid: j})
}

// PUT <API_ROOT>/jobs/{jid}/load
// Save the load of a published job.
func (api *API) saveLoadHandler(c echo.Context) error {
	j := c.Param("jid")
	var load proto.Load
	if err := decodeBody(c, &load); err != nil {
		return handleError(err, c)
	}
	if load.Jid != "" && load.Jid != j {
		msg := fmt.Sprintf("load jid %s does not match jid in URL: %s", load.Jid, j)
		return handleError(jcerr.ValidationError{Message: msg}, c)
	}

	_, store, err := api.appCtx.Jobs.Returner(c.QueryParam("source"))
	if err != nil {
		return handleError(err, c)
	}
	if err := store.SaveLoad(j, load); err != nil {
		return handleError(err, c)
	}
	api.appCtx.Jobs.Cache().Invalidate()
	return c.NoContent(http.StatusOK)
}

// POST <API_ROOT>/jobs/{jid}/returns
// Record a minion return. The status code is the outcome: 201 stored,
// 202 not stored because the job is nocache, 409 duplicate return, 410 the
// job vanished while the return was written.
func (api *API) returnHandler(c echo.Context) error {
	j := c.Param("jid")
	var ret proto.Return
	if err := decodeBody(c, &ret); err != nil {
		return handleError(err, c)
	}
	if ret.Jid == "" {
		ret.Jid = j
	}
	if ret.Jid != j {
		msg := fmt.Sprintf("return jid %s does not match jid in URL: %s", ret.Jid, j)
		return handleError(jcerr.ValidationError{Message: msg}, c)
	}

	_, store, err := api.appCtx.Jobs.Returner(c.QueryParam("source"))
	if err != nil {
		return handleError(err, c)
	}
	outcome, err := store.Return(ret)
	if err != nil {
		return handleError(err, c)
	}
	api.appCtx.Jobs.Cache().Invalidate()

	status := http.StatusCreated
	switch outcome {
	case proto.RETURN_NOCACHE:
		status = http.StatusAccepted
	case proto.RETURN_DUPLICATE:
		status = http.StatusConflict
	case proto.RETURN_MISSING_JOB:
		status = http.StatusGone
	}
	return c.JSON(status, proto.ReturnResult{Jid: ret.Jid, Id: ret.Id, Outcome: proto.ReturnName[outcome]})
}

// POST <API_ROOT>/clean
// Remove expired jobs from every job cache now.
func (api *API) cleanHandler(c echo.Context) error {
	removed, err := api.appCtx.CleanOldJobs()
	if err != nil {
		return handleError(err, c)
	}
	api.appCtx.Jobs.Cache().Invalidate()
	return c.JSON(http.StatusOK, proto.CleanResult{Removed: removed})
}

// GET <API_ROOT>/jobs?source=&function=&target=&metadata.<key>=<value>
// List jobs. function and target are globs and can be given more than once.
func (api *API) listJobsHandler(c echo.Context) error {
	f := jobs.Filter{
		Metadata: map[string]string{},
	}
	for k, vals := range c.QueryParams() {
		switch {
		case k == "function":
			f.Functions = append(f.Functions, vals...)
		case k == "target":
			f.Targets = append(f.Targets, vals...)
		case strings.HasPrefix(k, "metadata.") && len(vals) > 0:
			f.Metadata[strings.TrimPrefix(k, "metadata.")] = vals[0]
		}
	}
	list, err := api.appCtx.Jobs.ListJobs(c.QueryParam("source"), f)
	if err != nil {
		return handleError(err, c)
	}
	return c.JSON(http.StatusOK, list)
}

// GET <API_ROOT>/jobs/{jid}
func (api *API) listJobHandler(c echo.Context) error {
	d, err := api.appCtx.Jobs.ListJob(c.Param("jid"), c.QueryParam("source"))
	if err != nil {
		return handleError(err, c)
	}
	return c.JSON(http.StatusOK, d)
}

// GET <API_ROOT>/jobs/{jid}/returns
func (api *API) lookupJidHandler(c echo.Context) error {
	ret, err := api.appCtx.Jobs.LookupJid(c.Param("jid"), c.QueryParam("source"))
	if err != nil {
		return handleError(err, c)
	}
	return c.JSON(http.StatusOK, ret)
}

// GET <API_ROOT>/jobs/{jid}/load
func (api *API) getLoadHandler(c echo.Context) error {
	_, store, err := api.appCtx.Jobs.Returner(c.QueryParam("source"))
	if err != nil {
		return handleError(err, c)
	}
	load, err := store.GetLoad(c.Param("jid"))
	if err != nil {
		return handleError(err, c)
	}
	return c.JSON(http.StatusOK, load)
}

// GET <API_ROOT>/active
// Report jobs that minions are running now.
func (api *API) activeHandler(c echo.Context) error {
	active, err := api.appCtx.Jobs.Active(c.Request().Context())
	if err != nil {
		return handleError(err, c)
	}
	return c.JSON(http.StatusOK, active)
}

// GET <API_ROOT>/queues
func (api *API) listQueuesHandler(c echo.Context) error {
	queues, err := api.appCtx.Queues.ListQueues()
	if err != nil {
		return handleError(err, c)
	}
	return c.JSON(http.StatusOK, queues)
}

// GET <API_ROOT>/queues/{queue}
func (api *API) listItemsHandler(c echo.Context) error {
	items, err := api.appCtx.Queues.ListItems(c.Param("queue"))
	if err != nil {
		return handleError(err, c)
	}
	return c.JSON(http.StatusOK, proto.QueueItems{Items: items})
}

// GET <API_ROOT>/queues/{queue}/length
func (api *API) queueLengthHandler(c echo.Context) error {
	q := c.Param("queue")
	n, err := api.appCtx.Queues.ListLength(q)
	if err != nil {
		return handleError(err, c)
	}
	return c.JSON(http.StatusOK, proto.QueueLength{Queue: q, Length: n})
}

// POST <API_ROOT>/queues/{queue}
// Insert items. The status is 207 if some items were already in the queue.
func (api *API) insertHandler(c echo.Context) error {
	var req proto.QueueItems
	if err := c.Bind(&req); err != nil {
		return err
	}
	res, err := api.appCtx.Queues.Insert(c.Param("queue"), req.Items...)
	if err != nil {
		return handleError(err, c)
	}
	status := http.StatusCreated
	if len(res.Conflicts) > 0 {
		status = http.StatusMultiStatus
	}
	return c.JSON(status, res)
}

// DELETE <API_ROOT>/queues/{queue}
func (api *API) deleteHandler(c echo.Context) error {
	var req proto.QueueItems
	if err := c.Bind(&req); err != nil {
		return err
	}
	if err := api.appCtx.Queues.Delete(c.Param("queue"), req.Items...); err != nil {
		return handleError(err, c)
	}
	return c.NoContent(http.StatusOK)
}

// POST <API_ROOT>/queues/{queue}/pop?n=<n|all>
func (api *API) popHandler(c echo.Context) error {
	n, err := queue.ParseQuantity(c.QueryParam("n"))
	if err != nil {
		return handleError(err, c)
	}
	items, err := api.appCtx.Queues.Pop(c.Param("queue"), n)
	if err != nil {
		return handleError(err, c)
	}
	return c.JSON(http.StatusOK, proto.QueueItems{Items: items})
}

// POST <API_ROOT>/queues/{queue}/process?n=<n|all>
// Pop items and fire the queue process event with them.
func (api *API) processHandler(c echo.Context) error {
	n, err := queue.ParseQuantity(c.QueryParam("n"))
	if err != nil {
		return handleError(err, c)
	}
	items, err := api.appCtx.Runner.Process(c.Param("queue"), n)
	if err != nil {
		return handleError(err, c)
	}
	return c.JSON(http.StatusOK, proto.QueueItems{Items: items})
}

func (api *API) versionHandler(c echo.Context) error {
	return c.String(http.StatusOK, v.Version())
}

// ------------------------------------------------------------------------- //

// decodeBody decodes a JSON request body into v. Unlike c.Bind, numbers in
// loads and returns keep their exact value.
func decodeBody(c echo.Context, v interface{}) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return err
	}
	if err := payload.DecodeJSON(body, v); err != nil {
		return jcerr.ValidationError{Message: fmt.Sprintf("invalid request body: %s", err)}
	}
	return nil
}

func handleError(err error, c echo.Context) error {
	ret := proto.Error{
		Message:    err.Error(),
		HTTPStatus: http.StatusInternalServerError,
	}

	switch err.(type) {
	case jcerr.MalformedJid, jcerr.ValidationError, jcerr.InvalidQueueName, jcerr.UnknownReturner:
		ret.HTTPStatus = http.StatusBadRequest
	}

	switch {
	case errors.Is(err, queue.ErrInvalidQuantity),
		errors.Is(err, jobcache.ErrInvalidJid),
		errors.Is(err, jobcache.ErrInvalidMinionId):
		ret.HTTPStatus = http.StatusBadRequest
	}

	return c.JSON(ret.HTTPStatus, ret)
}
