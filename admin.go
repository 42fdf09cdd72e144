// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package bridge

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"slices"
	"time"

	"github.com/gorilla/rpc/v2"
	"github.com/gorilla/rpc/v2/json2"
	"github.com/sirupsen/logrus"
)

// AdminService exposes server state over JSON-RPC as the "Bridge" service.
type AdminService struct {
	srv   Server
	model ObjectModel
}

type StatsArgs struct{}

type StatsReply struct {
	Transport   string `json:"transport"`
	Objects     int    `json:"objects"`
	LastID      int32  `json:"lastID"`
	Connections int64  `json:"connections"`
}

func (a *AdminService) Stats(_ *http.Request, _ *StatsArgs, reply *StatsReply) error {
	st := a.srv.Stats()
	*reply = StatsReply{
		Transport:   st.Transport,
		Objects:     st.Objects,
		LastID:      st.LastID,
		Connections: st.Connections,
	}
	return nil
}

type DescribeArgs struct {
	Class string `json:"class"`
}

type DescribeReply struct {
	Properties    []string `json:"properties"`
	Methods       []string `json:"methods"`
	StaticMethods []string `json:"staticMethods"`
}

func (a *AdminService) Describe(r *http.Request, args *DescribeArgs, reply *DescribeReply) error {
	info, err := a.model.Describe(r.Context(), args.Class)
	if err != nil {
		return rootCause(err)
	}
	reply.Properties = info.Properties
	reply.Methods = info.Methods
	reply.StaticMethods = info.StaticMethods
	return nil
}

type ClassesArgs struct{}

type ClassesReply struct {
	Classes []string `json:"classes"`
}

func (a *AdminService) Classes(_ *http.Request, _ *ClassesArgs, reply *ClassesReply) error {
	l, ok := a.model.(ClassLister)
	if !ok {
		return errors.New("object model cannot list classes")
	}
	reply.Classes = slices.Sorted(slices.Values(l.Classes()))
	return nil
}

type ReleaseArgs struct {
	ID int32 `json:"id"`
}

type ReleaseReply struct {
	Released bool `json:"released"`
}

func (a *AdminService) Release(_ *http.Request, args *ReleaseArgs, reply *ReleaseReply) error {
	reply.Released = a.srv.Proxies().Release(args.ID)
	return nil
}

// NewAdminHandler returns an HTTP handler serving the admin API for srv.
func NewAdminHandler(srv Server, model ObjectModel) (http.Handler, error) {
	s := rpc.NewServer()
	s.RegisterCodec(json2.NewCodec(), "application/json")
	if err := s.RegisterService(&AdminService{srv: srv, model: model}, "Bridge"); err != nil {
		return nil, err
	}
	return s, nil
}

// adminServer runs the admin API next to a bridge server and stops it with
// the server.
type adminServer struct {
	Server
	listener net.Listener
	http     *http.Server
	log      logrus.FieldLogger
}

func newAdminServer(srv Server, model ObjectModel, o *serverOptions) (*adminServer, error) {
	h, err := NewAdminHandler(srv, model)
	if err != nil {
		srv.Close()
		return nil, err
	}
	l, err := net.Listen("tcp", o.adminAddr)
	if err != nil {
		srv.Close()
		return nil, fmt.Errorf("admin listen %s: %w", o.adminAddr, err)
	}
	return &adminServer{
		Server:   srv,
		listener: l,
		http:     &http.Server{Handler: h, ReadHeaderTimeout: 10 * time.Second},
		log:      o.logger.WithField("admin", l.Addr().String()),
	}, nil
}

// AdminAddr returns the admin API listen address.
func (s *adminServer) AdminAddr() string { return s.listener.Addr().String() }

func (s *adminServer) Serve(ctx context.Context) error {
	go func() {
		s.log.Info("admin API serving")
		if err := s.http.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.WithError(err).Error("admin API stopped")
		}
	}()
	return s.Server.Serve(ctx)
}

func (s *adminServer) Close() error {
	s.http.Close()
	return s.Server.Close()
}

// AdminClient calls the admin API at a URL such as http://host:port/.
type AdminClient struct {
	uri  *url.URL
	opts []Option
}

// NewAdminClient returns a client for the admin API at rawURL. opts are
// applied to every request.
func NewAdminClient(rawURL string, opts ...Option) (*AdminClient, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	return &AdminClient{uri: u, opts: opts}, nil
}

func (c *AdminClient) Stats(ctx context.Context) (*StatsReply, error) {
	reply := &StatsReply{}
	if err := SendJSONRequest(ctx, c.uri, "Bridge.Stats", &StatsArgs{}, reply, c.opts...); err != nil {
		return nil, err
	}
	return reply, nil
}

func (c *AdminClient) Describe(ctx context.Context, class string) (*DescribeReply, error) {
	reply := &DescribeReply{}
	if err := SendJSONRequest(ctx, c.uri, "Bridge.Describe", &DescribeArgs{Class: class}, reply, c.opts...); err != nil {
		return nil, err
	}
	return reply, nil
}

func (c *AdminClient) Classes(ctx context.Context) ([]string, error) {
	reply := &ClassesReply{}
	if err := SendJSONRequest(ctx, c.uri, "Bridge.Classes", &ClassesArgs{}, reply, c.opts...); err != nil {
		return nil, err
	}
	return reply.Classes, nil
}

func (c *AdminClient) Release(ctx context.Context, id int32) (bool, error) {
	reply := &ReleaseReply{}
	if err := SendJSONRequest(ctx, c.uri, "Bridge.Release", &ReleaseArgs{ID: id}, reply, c.opts...); err != nil {
		return false, err
	}
	return reply.Released, nil
}
