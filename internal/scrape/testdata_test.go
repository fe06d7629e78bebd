package scrape

const botPageHTML = `<!DOCTYPE html>
<html>
<body>
  <div class="resource-header">
    <div class="resource-header-rank-container box">
      <span class="label">Rank</span> <span class="value">#7</span> of 42
    </div>
    <div class="resource-header-title-container">
      <div class="resource-header-title">  Sawblaze Jr. </div>
      <div class="resource-header-subtitle">1lb - Plastic Antweight</div>
    </div>
  </div>
  <div class="resource-history-body-table">
    <table>
      <thead><tr><th>Event</th><th>Result</th><th>Points</th></tr></thead>
      <tbody>
        <tr><td>Spring Brawl</td><td>1st</td><td>1.5</td></tr>
        <tr><td>Summer Smash</td><td>DNF</td><td>bad</td></tr>
        <tr><td>Fall Fury</td><td>3rd</td><td> 2.25 </td></tr>
        <tr><td>Short row</td></tr>
      </tbody>
    </table>
  </div>
</body>
</html>`

const sparseBotPageHTML = `<html><body>
  <div class="resource-header-title-container"></div>
</body></html>`

const notABotPageHTML = `<html><body><h1>Page not found</h1></body></html>`
