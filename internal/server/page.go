package server

const htmlClientPage = `<!DOCTYPE html>
<html>
<head>
    <meta charset="utf-8">
    <title>comicplate</title>
    <style>
        body { font-family: sans-serif; display: flex; flex-direction: column; align-items: center; margin: 20px 0; }
        #imageContainer {
            border: 1px solid #ccc;
            width: 60vw;
            aspect-ratio: 1200 / 825;
            display: flex;
            justify-content: center;
            align-items: center;
            background-color: #f0f0f0;
            overflow: hidden;
        }
        #streamedImage { width: 100%; height: 100%; object-fit: contain; image-rendering: pixelated; display: block; }
        #status { margin-top: 10px; font-style: italic; }
        nav a { margin: 0 8px; }
    </style>
</head>
<body>
    <h1>Panel preview</h1>
    <div id="imageContainer">
        <img id="streamedImage" src="" alt="Waiting for a comic..." />
    </div>
    <div id="status">Connecting...</div>
    <nav>
        <a href="/comic/color">color</a>
        <a href="/comic/grayscale">grayscale</a>
        <a href="/comic/inkplate">inkplate</a>
    </nav>

    <script>
        const imageElement = document.getElementById('streamedImage');
        const statusElement = document.getElementById('status');
        const eventSource = new EventSource('/comic/stream');

        eventSource.addEventListener('newImage', function(event) {
            imageElement.src = 'data:image/png;base64,' + event.data;
            imageElement.alt = 'Composed comic';
            statusElement.textContent = 'Updated at ' + new Date().toLocaleTimeString();
        });

        eventSource.addEventListener('noImage', function(event) {
            imageElement.src = '';
            imageElement.alt = event.data;
            statusElement.textContent = event.data;
        });

        eventSource.addEventListener('error', function(event) {
            if (event.data) {
                statusElement.textContent = 'Server error: ' + event.data;
            } else if (event.target.readyState === EventSource.CLOSED) {
                statusElement.textContent = 'Stream closed.';
            } else if (event.target.readyState === EventSource.CONNECTING) {
                statusElement.textContent = 'Stream lost, reconnecting...';
            }
        });
    </script>
</body>
</html>
`
